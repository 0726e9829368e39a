package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionCookieName = "admin_session"

// AdminClaims is the session token payload. ActorID identifies the operator
// so admin actions can be attributed in the audit log.
type AdminClaims struct {
	Role    string `json:"role"`
	ActorID string `json:"actor_id"`
	jwt.RegisteredClaims
}

// AuthManager mints and validates HMAC-signed admin session tokens. Tokens
// travel either as a bearer header or as the session cookie.
type AuthManager struct {
	secret       []byte
	cookieDomain string
	secureCookie bool
	ttl          time.Duration
}

func NewAuthManager(secret string, secure bool, domain string, ttl time.Duration) *AuthManager {
	return &AuthManager{
		secret:       []byte(secret),
		cookieDomain: domain,
		secureCookie: secure,
		ttl:          ttl,
	}
}

// Mint signs a session token for the operator and sets it as a cookie on the
// response. The signed token is also returned for header-based clients.
func (a *AuthManager) Mint(w http.ResponseWriter, actorID string) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Role:    "admin",
		ActorID: actorID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   actorID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, a.sessionCookie(signed, int(a.ttl.Seconds())))
	return signed, nil
}

// Clear expires the session cookie.
func (a *AuthManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, a.sessionCookie("", -1))
}

func (a *AuthManager) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   a.cookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

// ParseFromRequest extracts and validates a session token from the
// Authorization header or, failing that, the session cookie.
func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parseToken(strings.TrimSpace(hdr[7:]))
		}
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return a.parseToken(c.Value)
	}
	return nil, errors.New("missing token")
}

func (a *AuthManager) parseToken(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
