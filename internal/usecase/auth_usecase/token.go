package auth

import (
	"errors"
	"time"

	"pos/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
)

// JWTを発行する約束
type AccessTokenIssuer interface {
	Issue(userID string, role model.Role, tokenVersion int, now time.Time) (token string, expiresAt time.Time, err error)
}

// HS256でaccess tokenを発行
type HS256Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewHS256Issuer(secret string, ttl time.Duration) (*HS256Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}
	return &HS256Issuer{secret: []byte(secret), ttl: ttl}, nil
}

func (i *HS256Issuer) Issue(userID string, role model.Role, tokenVersion int, now time.Time) (string, time.Time, error) {
	exp := now.Add(i.ttl)

	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"tv":   tokenVersion,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
