// internal/httpserver/identity.go
//
// Client identity for round ownership.
//
// A ClientResolver turns a request into the opaque key the round table is
// indexed by. Two resolvers exist:
//   - IPResolver: the remote IP (chi's RealIP middleware has already applied
//     X-Forwarded-For / X-Real-IP).
//   - TokenResolver: the `sid` claim of a signed session token from the
//     Authorization header or session cookie, falling back to the IP.
//
// Tokens are HS256 JWTs issued by POST /api/session.

package httpserver

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookieName holds the client session token.
const SessionCookieName = "wordle_session"

// ClientResolver identifies the client behind a request.
type ClientResolver interface {
	ClientID(r *http.Request) string
}

// IPResolver keys clients by remote IP address.
type IPResolver struct{}

// ClientID returns the host part of RemoteAddr.
func (IPResolver) ClientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// TokenIssuer signs and verifies client session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer using secret for HS256 signatures.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a token for a fresh session id.
func (ti *TokenIssuer) Issue() (token, sid string, exp time.Time, err error) {
	sid = uuid.NewString()
	now := ti.now()
	exp = now.Add(ti.ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": sid,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	})
	token, err = t.SignedString(ti.secret)
	return token, sid, exp, err
}

// Parse verifies token and returns its session id.
func (ti *TokenIssuer) Parse(token string) (string, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(ti.now))
	if err != nil {
		return "", err
	}
	if !t.Valid {
		return "", errors.New("invalid token")
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", errors.New("token has no sid")
	}
	return sid, nil
}

// TokenResolver keys clients by session token, falling back to IP.
type TokenResolver struct {
	Issuer   *TokenIssuer
	Fallback ClientResolver
}

// ClientID returns "sid:<id>" for a valid token, otherwise the fallback key.
func (tr TokenResolver) ClientID(r *http.Request) string {
	if tok := bearerOrCookie(r); tok != "" {
		if sid, err := tr.Issuer.Parse(tok); err == nil {
			return "sid:" + sid
		}
	}
	if tr.Fallback == nil {
		return IPResolver{}.ClientID(r)
	}
	return tr.Fallback.ClientID(r)
}

// bearerOrCookie extracts a bearer token from Authorization header or session cookie.
func bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// setSessionCookie writes the session token cookie.
func setSessionCookie(w http.ResponseWriter, token string, exp time.Time, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Expires:  exp,
	})
}
