package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON document per domain under a key prefix.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects to url and verifies connectivity.
func NewRedisStore(url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStoreFromClient(rdb, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(domain string) string {
	return s.prefix + normalizeDomain(domain)
}

// Get retrieves credentials for a domain.
func (s *RedisStore) Get(ctx context.Context, domain string) (*AuthData, error) {
	val, err := s.rdb.Get(ctx, s.key(domain)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting credentials: %w", err)
	}

	var data AuthData
	if err := json.Unmarshal(val, &data); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	return &data, nil
}

// Set stores data without expiry.
func (s *RedisStore) Set(ctx context.Context, data *AuthData) error {
	if err := validate(data); err != nil {
		return err
	}

	entry := *data
	entry.Domain = normalizeDomain(entry.Domain)

	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := s.rdb.Set(ctx, s.key(entry.Domain), val, 0).Err(); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}

// Delete removes the credentials for a domain.
func (s *RedisStore) Delete(ctx context.Context, domain string) error {
	n, err := s.rdb.Del(ctx, s.key(domain)).Result()
	if err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List scans the key prefix and returns entries ordered by domain.
func (s *RedisStore) List(ctx context.Context) ([]*AuthData, error) {
	var result []*AuthData

	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		val, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("getting %s: %w", iter.Val(), err)
		}

		var data AuthData
		if err := json.Unmarshal(val, &data); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", iter.Val(), err)
		}
		result = append(result, &data)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning credentials: %w", err)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Domain < result[j].Domain })
	return result, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Ping checks connectivity to the server.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
