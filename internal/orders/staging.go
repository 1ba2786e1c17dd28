package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopworks/order-management-service/internal/models/errs"
	"github.com/shopworks/order-management-service/internal/models/order"
)

// StagingStore holds parsed-but-unapplied shipment rows between the
// upload and the user's confirmation. Each upload gets its own review
// token, so concurrent workflows never see each other's rows.
type StagingStore interface {
	// Put stores the rows and returns the review token addressing them.
	Put(ctx context.Context, rows []order.Delivery) (token string, err error)
	// Get returns the rows staged under the token.
	Get(ctx context.Context, token string) ([]order.Delivery, error)
	// Delete discards the staged rows once consumed.
	Delete(ctx context.Context, token string) error
}

type RedisStagingStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStagingStore(client *redis.Client, ttl time.Duration) (*RedisStagingStore, error) {
	if client == nil {
		return nil, errors.New("nil dependency: redis client")
	}

	return &RedisStagingStore{client: client, ttl: ttl}, nil
}

var _ StagingStore = (*RedisStagingStore)(nil)

func stagingKey(token string) string {
	return "staging:shipments:" + token
}

func (s *RedisStagingStore) Put(ctx context.Context, rows []order.Delivery) (string, error) {
	payload, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("marshal staged rows: %w", err)
	}

	token := uuid.NewString()

	if err = s.client.Set(ctx, stagingKey(token), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store staged rows: %w", err)
	}

	return token, nil
}

func (s *RedisStagingStore) Get(ctx context.Context, token string) ([]order.Delivery, error) {
	payload, err := s.client.Get(ctx, stagingKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("load staged rows: %w", err)
	}

	var rows []order.Delivery
	if err = json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal staged rows: %w", err)
	}

	return rows, nil
}

func (s *RedisStagingStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, stagingKey(token)).Err()
}
