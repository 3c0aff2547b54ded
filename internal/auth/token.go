package auth

import (
	"fmt"
	"time"

	"github.com/girishhardia/Jweluxe/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the decoded claim set carried through a request.
type Identity struct {
	UserID  int64
	IsAdmin bool
}

type claims struct {
	IsAdmin bool `json:"adm"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies the bearer tokens used for sessions.
// HS256 with a shared secret; no server-side session store.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates a token issuer with the given signing secret
// and token lifetime.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue returns a signed token encoding the user id and administrator flag.
func (ti *TokenIssuer) Issue(userID int64, isAdmin bool) (string, error) {
	now := time.Now()
	c := claims{
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(ti.secret)
}

// Verify parses a token string and returns the identity it encodes.
// Malformed, expired, or badly signed tokens all map to ErrInvalidToken.
func (ti *TokenIssuer) Verify(tokenStr string) (*Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	}

	var userID int64
	if _, err := fmt.Sscanf(c.Subject, "%d", &userID); err != nil {
		return nil, fmt.Errorf("%w: bad subject claim", models.ErrInvalidToken)
	}

	return &Identity{UserID: userID, IsAdmin: c.IsAdmin}, nil
}
