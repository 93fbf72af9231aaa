package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ticketer/internal/clock"
	"ticketer/internal/models"
)

// Claims carries the operator identity in the subject claim.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and verifies HS256 credentials for operators.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokenIssuer(secret string, ttl time.Duration, clk clock.Clock) *TokenIssuer {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, clock: clk}
}

// IssueCredential signs a token for userID that expires after the configured TTL.
func (i *TokenIssuer) IssueCredential(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", models.ErrInvalidInput)
	}

	now := i.clock.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// VerifyCredential returns the user id of a valid token. Any failure,
// including expiry and a wrong signing method, is ErrInvalidCredential.
func (i *TokenIssuer) VerifyCredential(tokenStr string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", models.ErrInvalidCredential)
		}
		return "", fmt.Errorf("%w: %v", models.ErrInvalidCredential, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", models.ErrInvalidCredential
	}

	return claims.Subject, nil
}
