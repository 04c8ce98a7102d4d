package translation

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "translate:"

// RedisStore keeps translations in Redis with no expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (string, bool, error) {
	v, err := s.client.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key Key, value string) error {
	return s.client.Set(ctx, redisKey(key), value, 0).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// redisKey hashes the text so arbitrarily long lines produce bounded keys.
func redisKey(k Key) string {
	sum := sha1.Sum([]byte(k.Text))
	return redisKeyPrefix + k.Src + "|" + k.Dst + "|" + hex.EncodeToString(sum[:])
}
