package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/ports"
)

const keyPrefix = "pdflibrary:dialog:"

// RedisStore keeps dialogs in Redis so they survive restarts and can be
// shared by several bot replicas. Expiry is delegated to key TTLs.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ ports.StateStore = (*RedisStore)(nil)

// NewRedisStore connects to addr and checks the connection.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(rdb, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Get returns the user's dialog if one is active.
func (s *RedisStore) Get(ctx context.Context, userID int64) (domain.Dialog, bool, error) {
	raw, err := s.rdb.Get(ctx, dialogKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Dialog{}, false, nil
	}
	if err != nil {
		return domain.Dialog{}, false, fmt.Errorf("redis get dialog: %w", err)
	}

	var d domain.Dialog
	if err := json.Unmarshal(raw, &d); err != nil {
		// unreadable state is dropped rather than blocking the user
		_ = s.rdb.Del(ctx, dialogKey(userID)).Err()
		return domain.Dialog{}, false, nil
	}
	return d, true, nil
}

// Set stores the dialog with the configured TTL.
func (s *RedisStore) Set(ctx context.Context, userID int64, dialog domain.Dialog) error {
	dialog.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(dialog)
	if err != nil {
		return fmt.Errorf("encode dialog: %w", err)
	}
	if err := s.rdb.Set(ctx, dialogKey(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set dialog: %w", err)
	}
	return nil
}

// Clear drops the user's dialog.
func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, dialogKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del dialog: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func dialogKey(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}
