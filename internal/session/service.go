// Package session issues and checks the bearer tokens that carry an
// authenticated identity between requests.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/ksuid"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
)

// Config for token signing and revocation.
type Config struct {
	Secret   string
	TTL      time.Duration
	Issuer   string
	RedisURL string
}

// ConfigFromEnv reads SESSION_SECRET, SESSION_TTL, SESSION_ISSUER and REDIS_URL.
func ConfigFromEnv() Config {
	cfg := Config{
		Secret:   os.Getenv("SESSION_SECRET"),
		Issuer:   os.Getenv("SESSION_ISSUER"),
		RedisURL: os.Getenv("REDIS_URL"),
		TTL:      8 * time.Hour,
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TTL = d
		}
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "caps-intake"
	}
	return cfg
}

// Service signs HS256 session tokens and consults a Revoker on every check.
type Service struct {
	key     []byte
	issuer  string
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

// NewService builds a Service. Without a configured secret a random key is
// generated, so tokens do not survive a restart.
func NewService(cfg Config, revoker Revoker) (*Service, error) {
	key := []byte(cfg.Secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 8 * time.Hour
	}
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Service{key: key, issuer: cfg.Issuer, ttl: cfg.TTL, revoker: revoker, now: time.Now}, nil
}

// Issue creates a token for an authenticated identity.
func (s *Service) Issue(v entity.AuthView) (Token, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	jti := ksuid.New().String()
	claims := Claims{
		Username: v.Username,
		Role:     v.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(v.ID, 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return Token{}, fmt.Errorf("sign session token: %w", err)
	}
	return Token{Value: signed, ID: jti, ExpiresAt: exp}, nil
}

// Parse verifies signature, issuer, expiry and revocation. Any token
// problem is reported as apperr.ErrAuthFailed.
func (s *Service) Parse(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAuthFailed, err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: token has no id", apperr.ErrAuthFailed)
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: session revoked", apperr.ErrAuthFailed)
	}
	return claims, nil
}

// UserID is the numeric subject of c.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, errors.Join(apperr.ErrAuthFailed, err)
	}
	return id, nil
}

// Revoke ends the session of c until its natural expiry.
func (s *Service) Revoke(ctx context.Context, c *Claims) error {
	until := s.now().Add(s.ttl)
	if c.ExpiresAt != nil {
		until = c.ExpiresAt.Time
	}
	return s.revoker.Revoke(ctx, c.ID, until)
}
