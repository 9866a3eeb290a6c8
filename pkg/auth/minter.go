package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/haeso-app/haeso-api/pkg/domain"
)

const customTokenTTL = time.Hour

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Minter signs and verifies the backend-issued custom tokens that bridge a
// platform login into a provider session.
type Minter struct {
	projectID   string
	clientEmail string
	key         []byte
}

func NewMinter(projectID, clientEmail string, privateKey []byte) *Minter {
	return &Minter{
		projectID:   projectID,
		clientEmail: clientEmail,
		key:         privateKey,
	}
}

// MintCustomToken creates a signed credential for the given canonical uid.
func (m *Minter) MintCustomToken(uid string, provider domain.AuthProvider) (string, error) {
	claims := jwt.MapClaims{
		"iss":      m.clientEmail,
		"aud":      m.projectID,
		"uid":      uid,
		"provider": string(provider),
		"iat":      NowTimeFunc().Unix(),
		"exp":      NowTimeFunc().Add(customTokenTTL).Unix(),
		"jti":      uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign custom token: %w", err)
	}
	return signed, nil
}

// VerifyCustomToken validates a custom token and returns the uid and
// provider it was minted for.
func (m *Minter) VerifyCustomToken(tokenString string) (uid string, provider domain.AuthProvider, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return m.key, nil
	}, jwt.WithAudience(m.projectID), jwt.WithIssuer(m.clientEmail))
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidToken
	}

	uid, _ = claims["uid"].(string)
	if uid == "" {
		return "", "", ErrInvalidToken
	}
	providerStr, _ := claims["provider"].(string)
	return uid, domain.AuthProvider(providerStr), nil
}
