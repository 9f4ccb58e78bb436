package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/storefront-hq/backoffice/config"
	"github.com/storefront-hq/backoffice/types"
)

const (
	defaultCookieName = "storefront_session"
	defaultTTL        = 24 * time.Hour
	revokedKeyPrefix  = "session:revoked:"
)

var (
	// ErrNoSession is returned when a request carries no session token.
	ErrNoSession = errors.New("no session")

	// ErrInvalidSession is returned for tokens that fail verification or were revoked.
	ErrInvalidSession = errors.New("invalid session")
)

// RevocationStore remembers revoked token ids until they would have expired anyway.
type RevocationStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Claims is the signed payload of a session token.
type Claims struct {
	Role types.Role `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues, verifies and revokes session tokens.
type Manager struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	revoked    RevocationStore
	now        func() time.Time
}

// NewManager constructs a Manager. revoked may be nil, in which case logout only clears the cookie.
func NewManager(cfg config.SessionConfig, revoked RevocationStore) (*Manager, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}

	m := &Manager{
		secret:     []byte(secret),
		ttl:        cfg.TTL,
		cookieName: cfg.CookieName,
		secure:     cfg.Secure,
		revoked:    revoked,
		now:        time.Now,
	}
	if m.ttl <= 0 {
		m.ttl = defaultTTL
	}
	if m.cookieName == "" {
		m.cookieName = defaultCookieName
	}
	return m, nil
}

// Issue signs a session token for user.
func (m *Manager) Issue(user types.User) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

// Parse verifies token and returns the identity it carries.
func (m *Manager) Parse(ctx context.Context, token string) (types.Identity, error) {
	claims, err := m.verify(token)
	if err != nil {
		return types.Identity{}, err
	}

	if m.revoked != nil {
		marker, _ := m.revoked.Get(ctx, revokedKeyPrefix+claims.ID)
		if marker != nil {
			return types.Identity{}, ErrInvalidSession
		}
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || !claims.Role.Valid() {
		return types.Identity{}, ErrInvalidSession
	}
	return types.Identity{UserID: userID, Role: claims.Role}, nil
}

// Revoke blacklists token for the rest of its lifetime. Invalid tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if m.revoked == nil || token == "" {
		return nil
	}
	claims, err := m.verify(token)
	if err != nil {
		return nil
	}
	remaining := claims.ExpiresAt.Time.Sub(m.now())
	if remaining <= 0 {
		return nil
	}
	return m.revoked.Set(ctx, revokedKeyPrefix+claims.ID, []byte("1"), remaining)
}

func (m *Manager) verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// TokenFromRequest reads the session cookie, falling back to a bearer token.
func (m *Manager) TokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", ErrNoSession
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrNoSession
	}
	return strings.TrimSpace(parts[1]), nil
}

// SetCookie writes the session cookie.
func (m *Manager) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) CookieName() string {
	return m.cookieName
}
