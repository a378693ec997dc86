package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/saml-front/internal/log"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces all keys written by RedisStorage
const DefaultRedisKeyPrefix = "saml-front:users:"

// RedisStorage tracks users in Redis: one JSON value per user plus a set
// indexing every user key.
type RedisStorage struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

var _ Storage = (*RedisStorage)(nil)

// RedisConfig configures RedisStorage
type RedisConfig struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisStorage connects to Redis and verifies the connection
func NewRedisStorage(ctx context.Context, cfg RedisConfig) (*RedisStorage, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	log.LogInfoWithFields("storage", "Using Redis user storage", map[string]any{
		"addr": cfg.Addr,
		"db":   cfg.DB,
	})
	return newRedisStorage(client, cfg.KeyPrefix), nil
}

func newRedisStorage(client *redis.Client, keyPrefix string) *RedisStorage {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	return &RedisStorage{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (s *RedisStorage) userKey(username, realm string) string {
	return s.keyPrefix + userKey(username, realm)
}

func (s *RedisStorage) indexKey() string {
	return s.keyPrefix + "index"
}

// update applies fn to the stored user under optimistic locking. fn receives
// nil when the user does not exist yet.
func (s *RedisStorage) update(ctx context.Context, key string, fn func(*TrackedUser) (*TrackedUser, error)) error {
	txf := func(tx *redis.Tx) error {
		var current *TrackedUser
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("failed to get key %s: %w", key, err)
		default:
			current = &TrackedUser{}
			if err := json.Unmarshal(data, current); err != nil {
				return fmt.Errorf("failed to unmarshal user: %w", err)
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			pipe.SAdd(ctx, s.indexKey(), key)
			return nil
		})
		return err
	}

	for range 3 {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("failed to update %s: too much contention", key)
}

// UpsertUser creates or updates a user's last seen time
func (s *RedisStorage) UpsertUser(ctx context.Context, username, realm string) error {
	now := s.now()
	return s.update(ctx, s.userKey(username, realm), func(user *TrackedUser) (*TrackedUser, error) {
		if user == nil {
			return &TrackedUser{Username: username, Realm: realm, FirstSeen: now, LastSeen: now}, nil
		}
		user.LastSeen = now
		return user, nil
	})
}

// RecordLogout stamps the user's last logout time
func (s *RedisStorage) RecordLogout(ctx context.Context, username, realm string) error {
	now := s.now()
	return s.update(ctx, s.userKey(username, realm), func(user *TrackedUser) (*TrackedUser, error) {
		if user == nil {
			return nil, ErrUserNotFound
		}
		user.LastLogout = &now
		return user, nil
	})
}

// GetAllUsers returns all users ordered by realm and username
func (s *RedisStorage) GetAllUsers(ctx context.Context) ([]TrackedUser, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if len(keys) == 0 {
		return []TrackedUser{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	users := make([]TrackedUser, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Value vanished since the index was read
			continue
		}
		var user TrackedUser
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			log.LogError("Failed to unmarshal user %s: %v", keys[i], err)
			continue
		}
		users = append(users, user)
	}
	sortUsers(users)
	return users, nil
}

// PruneUsers removes users last seen before the cutoff. Each deletion
// re-reads the user under WATCH so a login racing the prune keeps its record.
func (s *RedisStorage) PruneUsers(ctx context.Context, before time.Time) (int, error) {
	users, err := s.GetAllUsers(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, user := range users {
		if !user.LastSeen.Before(before) {
			continue
		}
		key := s.userKey(user.Username, user.Realm)
		deleted, err := s.pruneUser(ctx, key, before)
		if err != nil {
			return removed, err
		}
		if deleted {
			removed++
		}
	}
	return removed, nil
}

// pruneUser deletes key when its stored LastSeen still predates before
func (s *RedisStorage) pruneUser(ctx context.Context, key string, before time.Time) (bool, error) {
	deleted := false
	txf := func(tx *redis.Tx) error {
		deleted = false
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// Already gone; drop the dangling index entry
			return tx.SRem(ctx, s.indexKey(), key).Err()
		case err != nil:
			return fmt.Errorf("failed to get key %s: %w", key, err)
		}

		var current TrackedUser
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("failed to unmarshal user: %w", err)
		}
		if !current.LastSeen.Before(before) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.indexKey(), key)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}

	for range 3 {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to delete user %s: %w", key, err)
		}
		return deleted, nil
	}
	// The user kept changing under us, so it is evidently active
	log.LogWarnWithFields("storage", "Skipped pruning contended user", map[string]any{"key": key})
	return false, nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
