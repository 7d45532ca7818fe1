package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"market-auth/backend/internal/singleuse/domain"
)

// deleteByIDScript removes the owner key only if it still holds the token with the given id, then
// drops the id index. It returns 1 when the owner key was removed.
var deleteByIDScript = redis.NewScript(`
local owner_key = redis.call("GET", KEYS[1])
if not owner_key then
  return 0
end
local removed = 0
local raw = redis.call("GET", owner_key)
if raw then
  local ok, tok = pcall(cjson.decode, raw)
  if ok and tok["id"] == ARGV[1] then
    removed = redis.call("DEL", owner_key)
  end
end
redis.call("DEL", KEYS[1])
return removed
`)

// ErrTokenExpired is returned by Create for a token whose expiry is not in the future.
var ErrTokenExpired = errors.New("token already expired")

// RedisRepository stores single-use tokens as JSON under one key per (purpose, owner) with a native
// TTL, so expired tokens disappear without a purge.
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
	nowF   func() time.Time
}

// NewRedisRepository returns a Redis-backed token repository. Keys are namespaced under prefix
// (default "singleuse").
func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "singleuse"
	}
	return &RedisRepository{client: client, prefix: prefix, nowF: time.Now}
}

func (r *RedisRepository) ownerKey(ownerID string, purpose domain.Purpose) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, purpose, ownerID)
}

func (r *RedisRepository) idKey(id string) string {
	return fmt.Sprintf("%s:id:%s", r.prefix, id)
}

func (r *RedisRepository) FindOneByOwner(ctx context.Context, ownerID string, purpose domain.Purpose) (*domain.Token, error) {
	raw, err := r.client.Get(ctx, r.ownerKey(ownerID, purpose)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	var t domain.Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if t.Expired(r.nowF()) {
		return nil, nil
	}
	return &t, nil
}

// Create writes the token with a TTL matching its expiry. SET overwrites any previous token for the
// same owner and purpose.
func (r *RedisRepository) Create(ctx context.Context, t *domain.Token) error {
	ttl := t.ExpiresAt.Sub(r.nowF())
	if ttl <= 0 {
		return ErrTokenExpired
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	key := r.ownerKey(t.OwnerID, t.Purpose)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, raw, ttl)
		p.Set(ctx, r.idKey(t.ID), key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) DeleteByOwner(ctx context.Context, ownerID string, purpose domain.Purpose) error {
	if err := r.client.Del(ctx, r.ownerKey(ownerID, purpose)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	n, err := deleteByIDScript.Run(ctx, r.client, []string{r.idKey(id)}, id).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n == 1, nil
}

// PurgeExpired is a no-op; Redis expires keys itself.
func (r *RedisRepository) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}
