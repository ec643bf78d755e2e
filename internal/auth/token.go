package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidOrExpiredToken はセッショントークンの検証に失敗したことを表す。
// 署名不正、アルゴリズム不一致、期限切れ、形式不正を区別しない。
var ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

// DefaultSessionTTL はセッショントークンの既定の有効期間。
const DefaultSessionTTL = 30 * time.Minute

// SessionClaims はセッショントークンに含めるクレーム。
type SessionClaims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService はHS256で署名したセッショントークンの発行と検証を行う。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService はTokenServiceを生成する。ttlが0以下の場合はDefaultSessionTTLを使用する。
func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: secret, ttl: ttl, now: time.Now}
}

// TTL はトークンの有効期間を返す。
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue はユーザーIDとメールアドレスを含むセッショントークンを発行する。
func (s *TokenService) Issue(userID int64, email string) (string, error) {
	now := s.now()
	claims := SessionClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify はセッショントークンを検証し、クレームを返す。
// 検証に失敗した場合は常にErrInvalidOrExpiredTokenを返す。
func (s *TokenService) Verify(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}
	if claims.UserID <= 0 {
		return nil, ErrInvalidOrExpiredToken
	}
	return claims, nil
}
