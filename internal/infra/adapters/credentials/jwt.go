package credentials

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vidiwise/internal/domain/ports/adapter"
)

var _ adapter.CredentialProvider = (*JWTProvider)(nil)

// refreshSkew is how long before expiry a cached token is replaced.
const refreshSkew = 30 * time.Second

// ClientClaims is the payload of tokens minted for the video backend.
type ClientClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider mints short-lived HS256 tokens and reuses each one until it
// is close to expiry.
type JWTProvider struct {
	secret  []byte
	subject string
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewJWTProvider(secret, subject string, ttl time.Duration) (*JWTProvider, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if subject == "" {
		subject = "vidiwise"
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &JWTProvider{secret: []byte(secret), subject: subject, ttl: ttl, now: time.Now}, nil
}

func (p *JWTProvider) Credential(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.token != "" && now.Add(refreshSkew).Before(p.expires) {
		return p.token, nil
	}
	exp := now.Add(p.ttl)
	claims := ClientClaims{
		Scope: "videos",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", err
	}
	p.token, p.expires = signed, exp
	return signed, nil
}

// New picks the provider configured for the backend: a JWT minter when a
// secret is set, otherwise the static token.
func New(token, jwtSecret, subject string, ttl time.Duration) (adapter.CredentialProvider, error) {
	if jwtSecret != "" {
		return NewJWTProvider(jwtSecret, subject, ttl)
	}
	return StaticToken(token), nil
}
