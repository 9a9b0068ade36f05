// internal/auth/session.go
package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie that carries the session token.
const CookieName = "auth_token"

var ErrUnauthenticated = errors.New("unauthenticated")

// Authority signs and verifies EdDSA session tokens whose "sub" is the player id.
type Authority struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	// expire of zero issues tokens without an exp claim.
	expire time.Duration
	now    func() time.Time
}

// ParseExpire reads a token lifetime: a Go duration, or "never", "0" or "" for none.
func ParseExpire(s string) (time.Duration, error) {
	if s == "never" || s == "0" || s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// New generates a fresh ed25519 key pair at runtime. Tokens do not survive a restart.
func New(expire time.Duration) (*Authority, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Authority{privateKey: priv, publicKey: pub, expire: expire, now: time.Now}, nil
}

// NewFromPath reads raw ed25519 private/public keys from file.
func NewFromPath(privatePath, publicPath string, expire time.Duration) (*Authority, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, errors.New("key files are not raw ed25519 keys")
	}
	return &Authority{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		expire:     expire,
		now:        time.Now,
	}, nil
}

// CreateJWT signs a token with "sub" = userID and, when configured, an exp claim.
func (a *Authority) CreateJWT(userID uuid.UUID) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
	}
	if a.expire > 0 {
		claims["exp"] = now.Add(a.expire).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(a.privateKey)
}

// AuthenticateJWT verifies a token and returns its subject.
func (a *Authority) AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.publicKey, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: jwt parse error: %v", ErrUnauthenticated, err)
	}
	if !t.Valid {
		return uuid.Nil, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: invalid jwt claims", ErrUnauthenticated)
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing sub in jwt", ErrUnauthenticated)
	}
	id, err := uuid.Parse(sub)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: malformed sub in jwt", ErrUnauthenticated)
	}
	return id, nil
}

type ctxKey struct{}

// WithPlayer stores the authenticated player id on the context.
func WithPlayer(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// PlayerFrom returns the authenticated player id, if any.
func PlayerFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
