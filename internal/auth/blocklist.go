package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const blocklistPrefix = "token_blocklist"

// RevocationStore records revoked token IDs.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Blocklist is a Redis-backed RevocationStore. Entries expire with the token they revoke.
type Blocklist struct {
	client *redis.Client
	prefix string
}

// NewBlocklist creates a blocklist on the given client.
func NewBlocklist(client *redis.Client) *Blocklist {
	return &Blocklist{client: client, prefix: blocklistPrefix}
}

func (b *Blocklist) key(jti string) string {
	return b.prefix + ":" + jti
}

// Revoke stores jti until ttl elapses. Already expired tokens need no entry.
func (b *Blocklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, b.key(jti), "", ttl).Err()
}

// IsRevoked reports whether jti is on the blocklist.
func (b *Blocklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
