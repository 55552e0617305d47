package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shakthiframing/storefront/internal/domain"
)

// Repository persists cart state between requests, keyed by an
// identity-scoped session key. A missing key loads as an empty cart.
type Repository interface {
	Load(ctx context.Context, key string) (*Store, error)
	Save(ctx context.Context, key string, store *Store) error
	Delete(ctx context.Context, key string) error
}

type cartState struct {
	Items           []domain.CartItem       `json:"items"`
	ShippingAddress *domain.ShippingAddress `json:"shippingAddress,omitempty"`
}

type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func (r *RedisRepository) Load(ctx context.Context, key string) (*Store, error) {
	data, err := r.client.Get(ctx, cartKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", key, err)
	}

	var state cartState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", key, err)
	}

	return &Store{items: state.Items, address: state.ShippingAddress}, nil
}

func (r *RedisRepository) Save(ctx context.Context, key string, store *Store) error {
	data, err := json.Marshal(cartState{
		Items:           store.items,
		ShippingAddress: store.address,
	})
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", key, err)
	}

	if err := r.client.Set(ctx, cartKey(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save cart %s: %w", key, err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, cartKey(key)).Err(); err != nil {
		return fmt.Errorf("delete cart %s: %w", key, err)
	}
	return nil
}

func cartKey(key string) string {
	return "cart:" + key
}
