package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionCookie = "sponsorship_admin_session"

var errNoSession = errors.New("no admin session")

// SessionClaims is the admin session payload. SponsorScope pins the session
// to one sponsor when the admin logs in to operate on that sponsor's behalf;
// sponsor-scoped operations then resolve to it regardless of request
// parameters, and the scope travels into the audit trail via the Actor.
type SessionClaims struct {
	Role         string `json:"role"`
	SponsorScope string `json:"sponsor_scope,omitempty"`
	jwt.RegisteredClaims
}

// AuthManager issues and verifies admin session tokens. Tokens travel as a
// Bearer header for API clients and as an HttpOnly cookie for the dashboard.
type AuthManager struct {
	secret       []byte
	cookieDomain string
	secure       bool
	ttl          time.Duration
}

func NewAuthManager(secret string, secure bool, domain string, ttl time.Duration) *AuthManager {
	return &AuthManager{secret: []byte(secret), cookieDomain: domain, secure: secure, ttl: ttl}
}

// Issue mints a session for userID, optionally scoped to one sponsor, sets
// it as a cookie and returns the raw token for Bearer use.
func (a *AuthManager) Issue(w http.ResponseWriter, userID, sponsorScope string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Role:         "admin",
		SponsorScope: sponsorScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", err
	}
	a.setCookie(w, signed, int(a.ttl.Seconds()))
	return signed, nil
}

// Clear expires the session cookie. An already-issued Bearer token stays
// valid until its TTL runs out.
func (a *AuthManager) Clear(w http.ResponseWriter) { a.setCookie(w, "", -1) }

func (a *AuthManager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		Domain:   a.cookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Authenticate verifies the session from the Bearer header, falling back to
// the cookie.
func (a *AuthManager) Authenticate(r *http.Request) (*SessionClaims, error) {
	if hdr := r.Header.Get("Authorization"); len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
		return a.verify(strings.TrimSpace(hdr[7:]))
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return a.verify(c.Value)
	}
	return nil, errNoSession
}

func (a *AuthManager) verify(tok string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}
