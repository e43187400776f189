// Package redisstore implements store.Store on Redis so several gateway
// replicas share admission records and session contexts.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tourdesk/pkg/config"
	"tourdesk/pkg/store"
)

const maxUpdateAttempts = 8

// Store wraps a redis client and namespaces every key with a prefix.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New wraps an existing client.
func New(client redis.UniversalClient, prefix string) (*Store, error) {
	if client == nil {
		return nil, errors.New("redisstore: client must not be nil")
	}
	return &Store{client: client, prefix: prefix}, nil
}

// Open dials redis from config and verifies connectivity.
func Open(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redisstore: store.redis.addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	s, err := New(client, cfg.Prefix)
	if err != nil {
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	created, err := s.client.SetNX(ctx, s.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: setnx %q: %w", key, err)
	}
	return created, nil
}

// Update runs fn inside WATCH/MULTI and retries when another writer touched
// the key between read and commit.
func (s *Store) Update(ctx context.Context, key string, ttl time.Duration, fn store.UpdateFunc) error {
	fullKey := s.key(key)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, fullKey)
				return nil
			}
			pipe.Set(ctx, fullKey, next, ttl)
			return nil
		})
		return err
	}

	for range maxUpdateAttempts {
		err := s.client.Watch(ctx, txf, fullKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("redisstore: update %q: %w", key, err)
	}

	return fmt.Errorf("redisstore: update %q: %w", key, store.ErrConflict)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redisstore: del %q: %w", key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisstore: ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ store.Store = (*Store)(nil)
