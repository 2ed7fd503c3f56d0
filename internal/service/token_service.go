package service

import (
	"errors"
	"time"

	"backend/internal/config"
	"backend/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the identity payload carried by both token kinds.
type TokenClaims struct {
	UserID string
	Role   string
}

// TokenPair bundles a short-lived access token with a longer-lived refresh
// token. Both are stateless HS256 JWTs keyed by independent secrets; there
// is no revocation list, logout is client-side discard.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// TokenService signs and verifies access/refresh tokens. Signing and
// verification are pure and safe for unlimited concurrency.
type TokenService interface {
	IssuePair(user *model.User) (TokenPair, error)
	VerifyAccess(token string) (*TokenClaims, error)
	VerifyRefresh(token string) (*TokenClaims, error)
	AccessSecret() []byte
}

type tokenService struct {
	cfg config.AuthConfig
}

// NewTokenService returns a new instance of TokenService
func NewTokenService(cfg config.AuthConfig) TokenService {
	return &tokenService{cfg: cfg}
}

func (s *tokenService) sign(user *model.User, secret string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func (s *tokenService) IssuePair(user *model.User) (TokenPair, error) {
	access, err := s.sign(user, s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(user, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Token: access, RefreshToken: refresh}, nil
}

// verify parses and validates a token. Failures surface as an opaque
// authentication error with no further detail beyond expiry.
func verify(tokenString, secret string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return nil, ErrTokenInvalid
	}
	return &TokenClaims{UserID: sub, Role: role}, nil
}

func (s *tokenService) VerifyAccess(token string) (*TokenClaims, error) {
	return verify(token, s.cfg.AccessSecret)
}

func (s *tokenService) VerifyRefresh(token string) (*TokenClaims, error) {
	return verify(token, s.cfg.RefreshSecret)
}

func (s *tokenService) AccessSecret() []byte {
	return []byte(s.cfg.AccessSecret)
}
