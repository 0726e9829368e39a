package model

import (
	"encoding/json"
	"time"

	"framely/internal/domain"

	"github.com/google/uuid"
)

// ActorSystem is the actor id recorded for transitions nobody requested
// directly (sweep, workers, recovery runs without an operator).
const ActorSystem = "system"

type AuditEventType string

const (
	EventPaymentSuccess   AuditEventType = "payment_success"
	EventPaymentFailed    AuditEventType = "payment_failed"
	EventFreeActivation   AuditEventType = "free_activation"
	EventAdminDeactivate  AuditEventType = "admin_deactivate"
	EventAdminReactivate  AuditEventType = "admin_reactivate"
	EventAdminExtend      AuditEventType = "admin_extend"
	EventAdminSetExpiry   AuditEventType = "admin_set_expiry"
	EventAdminDelete      AuditEventType = "admin_delete"
	EventCampaignExpired  AuditEventType = "campaign_expired"
	EventRecoveredPayment AuditEventType = "recovered_payment_activation"
	EventRecoveredFree    AuditEventType = "recovered_free_activation"
	EventOrphanCleanup    AuditEventType = "orphan_payment_cleanup"
	EventWebhookOrphan    AuditEventType = "webhook_orphan"
	EventWebhookDivergent AuditEventType = "webhook_divergent_replay"
)

// AuditMetadata is the tagged union of per-event metadata payloads. Each
// event type carries its own fixed schema so audit rows cannot drift shape.
type AuditMetadata interface {
	EventType() AuditEventType
}

type PaymentMeta struct {
	OrderID          string   `json:"order_id"`
	CampaignID       string   `json:"campaign_id"`
	PlanType         PlanType `json:"plan_type"`
	Amount           int64    `json:"amount"`
	GatewayPaymentID string   `json:"gateway_payment_id,omitempty"`
	Succeeded        bool     `json:"succeeded"`
}

func (m PaymentMeta) EventType() AuditEventType {
	if m.Succeeded {
		return EventPaymentSuccess
	}
	return EventPaymentFailed
}

type FreeActivationMeta struct {
	CampaignID string     `json:"campaign_id"`
	UserID     string     `json:"user_id"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Recovered  bool       `json:"recovered"`
}

func (m FreeActivationMeta) EventType() AuditEventType {
	if m.Recovered {
		return EventRecoveredFree
	}
	return EventFreeActivation
}

// AdminActionMeta captures before/after for operator transitions.
type AdminActionMeta struct {
	Event         AuditEventType `json:"-"`
	CampaignID    string         `json:"campaign_id"`
	WasActive     bool           `json:"was_active"`
	NowActive     bool           `json:"now_active"`
	PrevExpiresAt *time.Time     `json:"prev_expires_at,omitempty"`
	NewExpiresAt  *time.Time     `json:"new_expires_at,omitempty"`
	ExtensionDays int            `json:"extension_days,omitempty"`
}

func (m AdminActionMeta) EventType() AuditEventType { return m.Event }

type ExpiryMeta struct {
	CampaignID    string     `json:"campaign_id"`
	OwnerUserID   string     `json:"owner_user_id"`
	PlanType      PlanType   `json:"plan_type"`
	PrevExpiresAt *time.Time `json:"prev_expires_at,omitempty"`
}

func (m ExpiryMeta) EventType() AuditEventType { return EventCampaignExpired }

type RecoveryMeta struct {
	CampaignID string   `json:"campaign_id"`
	OrderID    string   `json:"order_id"`
	PlanType   PlanType `json:"plan_type"`
	Amount     int64    `json:"amount"`
}

func (m RecoveryMeta) EventType() AuditEventType { return EventRecoveredPayment }

type OrphanCleanupMeta struct {
	OrderID    string `json:"order_id"`
	CampaignID string `json:"campaign_id"`
}

func (m OrphanCleanupMeta) EventType() AuditEventType { return EventOrphanCleanup }

type WebhookAnomalyMeta struct {
	Event            AuditEventType `json:"-"`
	OrderID          string         `json:"order_id"`
	GatewayPaymentID string         `json:"gateway_payment_id,omitempty"`
	Detail           string         `json:"detail,omitempty"`
}

func (m WebhookAnomalyMeta) EventType() AuditEventType { return m.Event }

// AuditLogEntry is append-only; the core never mutates or deletes rows.
type AuditLogEntry struct {
	ID          string
	EventType   AuditEventType
	ActorID     string // user id or ActorSystem
	Description string
	Metadata    json.RawMessage
	CreatedAt   time.Time
}

// NewAuditLogEntry serializes the typed metadata and stamps the entry.
func NewAuditLogEntry(actorID, description string, meta AuditMetadata) (*AuditLogEntry, error) {
	if actorID == "" || meta == nil {
		return nil, domain.ErrInvalidArgument
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	return &AuditLogEntry{
		ID:          uuid.NewString(),
		EventType:   meta.EventType(),
		ActorID:     actorID,
		Description: description,
		Metadata:    raw,
		CreatedAt:   time.Now(),
	}, nil
}
