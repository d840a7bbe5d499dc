package cartstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/orderly/internal/domain/cart"
)

const cartKeyPrefix = "cart:"

// DefaultTTL is how long a cart survives without writes.
const DefaultTTL = 24 * time.Hour

// RedisStore keeps each cart as a Redis hash keyed by user id, one
// field per product. Every write refreshes the cart TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

func cartKey(userID string) string {
	return cartKeyPrefix + userID
}

func (s *RedisStore) PutItem(ctx context.Context, userID string, item cart.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode cart item: %w", err)
	}
	key := cartKey(userID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, item.ProductID, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store cart item: %w", err)
	}
	return nil
}

func (s *RedisStore) GetItem(ctx context.Context, userID, productID string) (*cart.Item, error) {
	data, err := s.client.HGet(ctx, cartKey(userID), productID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart item: %w", err)
	}
	var item cart.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode cart item: %w", err)
	}
	return &item, nil
}

func (s *RedisStore) GetItems(ctx context.Context, userID string) ([]cart.Item, error) {
	entries, err := s.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	items := make([]cart.Item, 0, len(entries))
	for field, data := range entries {
		var item cart.Item
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			s.logger.Warn("skipping undecodable cart entry",
				zap.String("userId", userID), zap.String("productId", field), zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *RedisStore) RemoveItem(ctx context.Context, userID, productID string) error {
	key := cartKey(userID)
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, key, productID)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Size(ctx context.Context, userID string) (int, error) {
	n, err := s.client.HLen(ctx, cartKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("cart size: %w", err)
	}
	return int(n), nil
}
