package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bodari/config"
	"bodari/internal/models"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "bodari:session:"

// RedisStore keeps states as JSON with a sliding TTL, so several bot
// replicas can share one conversation.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreWithClient(client, cfg.SessionTTL), nil
}

func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, telegramID int64) (*models.UserState, error) {
	raw, err := s.client.Get(ctx, Key(telegramID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", telegramID, err)
	}
	return Decode(raw)
}

func (s *RedisStore) Save(ctx context.Context, state *models.UserState) error {
	state.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", state.TelegramID, err)
	}
	if err := s.client.Set(ctx, Key(state.TelegramID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %d: %w", state.TelegramID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, telegramID int64) error {
	if err := s.client.Del(ctx, Key(telegramID)).Err(); err != nil {
		return fmt.Errorf("delete session %d: %w", telegramID, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func Key(telegramID int64) string {
	return keyPrefix + strconv.FormatInt(telegramID, 10)
}

// Decode parses a stored state and guarantees a non-nil scratch map.
func Decode(raw []byte) (*models.UserState, error) {
	var state models.UserState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if state.TemporaryData == nil {
		state.TemporaryData = make(map[string]string)
	}
	return &state, nil
}
