package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"perfbot/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the order cache connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
}

// RedisCache is a read-through cache of orders keyed by owner and ID
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects and pings the server
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: opts.TTL}, nil
}

// Close closes the client
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Ping checks the connection for health reporting
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func orderKey(userID, orderID string) string {
	return fmt.Sprintf("order:%s:%s", userID, orderID)
}

func (r *RedisCache) setJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

// getJSON reports false on a cache miss
func (r *RedisCache) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return true, nil
}

// GetOrder returns nil, nil on a miss
func (r *RedisCache) GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error) {
	var order model.Order
	found, err := r.getJSON(ctx, orderKey(userID, orderID), &order)
	if err != nil || !found {
		return nil, err
	}
	if order.Items == nil {
		order.Items = []model.ExtractedItem{}
	}
	return &order, nil
}

// SetOrder caches the decoded order under its owner
func (r *RedisCache) SetOrder(ctx context.Context, order *model.Order) error {
	return r.setJSON(ctx, orderKey(order.UserID, order.ID), order)
}

// DeleteOrder drops a cached order after it changes
func (r *RedisCache) DeleteOrder(ctx context.Context, userID, orderID string) error {
	return r.client.Del(ctx, orderKey(userID, orderID)).Err()
}
