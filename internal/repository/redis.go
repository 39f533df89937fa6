package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sohbat-app/chat-service/internal/config"
	"github.com/sohbat-app/chat-service/internal/models"
)

const onlineTTL = 5 * time.Minute

type RedisRepository interface {
	CacheMessage(ctx context.Context, message *models.Message) error
	GetCachedMessages(ctx context.Context, roomID string, limit int) ([]*models.Message, error)
	InvalidateRoom(ctx context.Context, roomID string) error
	SetUserOnline(ctx context.Context, userID string) error
	SetUserOffline(ctx context.Context, userID string) error
	IsUserOnline(ctx context.Context, userID string) (bool, error)
}

type redisRepository struct {
	client *redis.Client
}

// NewRedisClient connects and pings; the client is shared with the realtime
// feed.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func NewRedisRepository(client *redis.Client) RedisRepository {
	return &redisRepository{
		client: client,
	}
}

func roomCacheKey(roomID string) string {
	return fmt.Sprintf("room:%s:messages", roomID)
}

func (r *redisRepository) CacheMessage(ctx context.Context, message *models.Message) error {
	key := roomCacheKey(message.RoomID)

	messageJSON, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// Sorted set with the creation timestamp as score.
	score := float64(message.CreatedAt.UnixNano())
	err = r.client.ZAdd(ctx, key, &redis.Z{
		Score:  score,
		Member: messageJSON,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to cache message: %w", err)
	}

	// Keep only the last 100 messages
	r.client.ZRemRangeByRank(ctx, key, 0, -101)

	return nil
}

// GetCachedMessages returns the most recent window in ascending order.
func (r *redisRepository) GetCachedMessages(ctx context.Context, roomID string, limit int) ([]*models.Message, error) {
	key := roomCacheKey(roomID)

	result, err := r.client.ZRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get cached messages: %w", err)
	}

	messages := make([]*models.Message, 0, len(result))
	for _, messageJSON := range result {
		var message models.Message
		if err := json.Unmarshal([]byte(messageJSON), &message); err != nil {
			continue // Skip invalid messages
		}
		if message.IsDeleted {
			continue
		}
		messages = append(messages, &message)
	}

	return messages, nil
}

// InvalidateRoom drops a room's cache. Called after edits and deletes so the
// cache never serves stale images.
func (r *redisRepository) InvalidateRoom(ctx context.Context, roomID string) error {
	return r.client.Del(ctx, roomCacheKey(roomID)).Err()
}

func (r *redisRepository) SetUserOnline(ctx context.Context, userID string) error {
	key := fmt.Sprintf("user:%s:online", userID)
	return r.client.Set(ctx, key, "true", onlineTTL).Err()
}

func (r *redisRepository) SetUserOffline(ctx context.Context, userID string) error {
	key := fmt.Sprintf("user:%s:online", userID)
	return r.client.Del(ctx, key).Err()
}

func (r *redisRepository) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf("user:%s:online", userID)
	result, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	online, err := strconv.ParseBool(result)
	if err != nil {
		return false, err
	}

	return online, nil
}
