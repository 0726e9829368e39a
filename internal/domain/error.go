package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrDuplicateOrder  = errors.New("order id already exists")
	ErrInvalidAction   = errors.New("unknown admin action")
	ErrBlockedUser     = errors.New("user is blocked")
	ErrNotOwner        = errors.New("payer does not own this campaign")
	ErrFreeAlreadyUsed = errors.New("free campaign grant already used")
	ErrNotPaidPlan     = errors.New("plan is not a paid plan")
	ErrAlreadyActive   = errors.New("campaign already active")
	ErrAlreadyInactive = errors.New("campaign already inactive")
	ErrGateway         = errors.New("payment gateway request failed")
	ErrPartialBatch    = errors.New("batch chunk failed; prior chunks committed")

	// Infra-level errors surfaced through repositories
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction context")
	ErrLockNotAcquired    = errors.New("could not acquire job lock")
)
