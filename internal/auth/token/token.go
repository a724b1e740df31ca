package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/expenseflow/internal/clock"
	"github.com/smallbiznis/expenseflow/internal/config"
	"go.uber.org/fx"
)

var ErrInvalid = errors.New("invalid_token")

// Claims is the signed payload. CompanyID and Role ride along so the HTTP
// layer can authorize without a user lookup per request.
type Claims struct {
	jwt.StandardClaims
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
}

// Manager signs and verifies HS256 tokens and keeps a revocation list in
// redis keyed by the raw token string.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	redis  *redis.Client
	clock  clock.Clock
}

type Params struct {
	fx.In

	Config config.Config
	Redis  *redis.Client
	Clock  clock.Clock
}

func NewManager(p Params) *Manager {
	return &Manager{
		secret: []byte(p.Config.AuthJWTSecret),
		ttl:    time.Duration(p.Config.AuthTokenTTLMin) * time.Minute,
		issuer: p.Config.AppName,
		redis:  p.Redis,
		clock:  p.Clock,
	}
}

func (m *Manager) Issue(claims Claims) (string, time.Time, error) {
	now := m.clock.Now()
	expiresAt := now.Add(m.ttl)

	claims.StandardClaims = jwt.StandardClaims{
		Issuer:    m.issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (m *Manager) Verify(ctx context.Context, tokenString string) (Claims, error) {
	revoked, err := m.isRevoked(ctx, tokenString)
	if err != nil {
		return Claims{}, err
	}
	if revoked {
		return Claims{}, ErrInvalid
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return Claims{}, ErrInvalid
	}
	return *claims, nil
}

// Revoke blacklists the token for its remaining lifetime. Expired tokens
// need no entry since verification fails on the exp claim.
func (m *Manager) Revoke(ctx context.Context, tokenString string) error {
	claims, err := m.Verify(ctx, tokenString)
	if err != nil {
		return err
	}

	remaining := time.Until(time.Unix(claims.ExpiresAt, 0))
	if remaining <= 0 {
		return nil
	}
	return m.redis.Set(ctx, blacklistKey(tokenString), "revoked", remaining).Err()
}

func (m *Manager) isRevoked(ctx context.Context, tokenString string) (bool, error) {
	err := m.redis.Get(ctx, blacklistKey(tokenString)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func blacklistKey(tokenString string) string {
	return "auth:blacklist:" + tokenString
}
