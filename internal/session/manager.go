package session

import (
	"errors"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer = "courseportal"
	defaultLeeway = 30 * time.Second
)

// ErrInvalidToken covers malformed, tampered, expired, and revoked tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Manager issues and validates HS256 session tokens.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	issuer  string
	leeway  time.Duration
	revoker Revoker
}

// NewManager builds a session manager. The revoker may be nil, in which
// case logout only clears the cookie.
func NewManager(secret string, ttl time.Duration, revoker Revoker) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		issuer:  defaultIssuer,
		leeway:  defaultLeeway,
		revoker: revoker,
	}, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token whose subject is the user ID.
func (m *Manager) Issue(userID int64) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify validates the token and returns the subject user ID.
func (m *Manager) Verify(token string) (int64, error) {
	claims, err := m.parse(token)
	if err != nil {
		return 0, ErrInvalidToken
	}
	if m.revoker != nil {
		revoked, err := m.revoker.IsRevoked(token)
		if err != nil {
			return 0, err
		}
		if revoked {
			return 0, ErrInvalidToken
		}
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

// Revoke invalidates a still-valid token for its remaining lifetime.
// Invalid tokens are ignored; they cannot authenticate anyway.
func (m *Manager) Revoke(token string) error {
	if m.revoker == nil {
		return nil
	}
	claims, err := m.parse(token)
	if err != nil {
		return nil
	}
	remaining := time.Until(claims.ExpiresAt.Time) + m.leeway
	if remaining <= 0 {
		return nil
	}
	return m.revoker.Revoke(token, remaining)
}

func (m *Manager) parse(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithLeeway(m.leeway),
		jwt.WithExpirationRequired(),
	)
	return claims, err
}
