package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yourusername/signin-gateway/internal/accounts"
)

// ErrInvalidToken はトークンの署名・形式・有効期限のいずれかが不正な場合に返されます。
var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer はセッショントークンの発行と解決を行います。
type TokenIssuer interface {
	Issue(account *accounts.Account) (string, error)
	Parse(token string) (accountID string, err error)
}

// Claims はトークンに含める内容です。subject にアカウントIDを入れます。
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTIssuer は HS256 署名の JWT を発行します。
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer は JWTIssuer を作成します。
func NewJWTIssuer(secret []byte, ttl time.Duration) (*JWTIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}
	return &JWTIssuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue はアカウントに対するトークンを発行します。
func (j *JWTIssuer) Issue(account *accounts.Account) (string, error) {
	if account == nil || account.ID == "" {
		return "", errors.New("account id is required")
	}
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	})
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse はトークンを検証し、アカウントIDを返します。
func (j *JWTIssuer) Parse(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
