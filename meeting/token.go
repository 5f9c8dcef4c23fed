package meeting

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mockmate/mockmate-api/models"
)

// ErrBadToken is returned when a meeting token fails verification.
var ErrBadToken = errors.New("invalid meeting token")

// TokenClaims is the payload of the short-lived attach token minted by the
// join endpoint. The subject is the meeting id; the token expires with the
// buffered session window. The relay still re-authorizes the identity on
// attach; the token only ties the websocket upgrade to a prior grant.
type TokenClaims struct {
	Role     models.Role `json:"role"`
	Identity string      `json:"identity"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 meeting attach tokens.
type TokenIssuer struct {
	Secret []byte
}

// Issue creates a token for the given grant, expiring at expiry.
func (t TokenIssuer) Issue(meetingID string, role models.Role, identity string, expiry time.Time) (string, error) {
	claims := TokenClaims{
		Role:     role,
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   meetingID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

// Verify parses and validates a meeting token.
func (t TokenIssuer) Verify(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return t.Secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrBadToken
	}
	return claims, nil
}
