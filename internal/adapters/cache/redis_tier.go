package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/redis/go-redis/v9"

	"delivery-sequencer-service/internal/ports"
)

const redisKeyPrefix = "distfact:"

// Redis hot tier for deployments running more than one instance against
// the same fact store. Failures degrade to a miss; the persistent tier
// remains the source of truth.
type RedisTier struct {
	client *redis.Client
}

func NewRedisTier(redisURL string) (*RedisTier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &RedisTier{client: redis.NewClient(opts)}, nil
}

func (r *RedisTier) Get(ctx context.Context, key string) (ports.DistanceResult, bool) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.DistanceResult{}, false
	}
	if err != nil {
		log.Printf("redis tier get failed: key=%s err=%v", key, err)
		return ports.DistanceResult{}, false
	}

	var value ports.DistanceResult
	if err := json.Unmarshal(raw, &value); err != nil {
		log.Printf("redis tier decode failed: key=%s err=%v", key, err)
		return ports.DistanceResult{}, false
	}

	return value, true
}

func (r *RedisTier) Set(ctx context.Context, key string, value ports.DistanceResult) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("redis tier encode failed: key=%s err=%v", key, err)
		return
	}

	if err := r.client.Set(ctx, redisKeyPrefix+key, raw, hotTierTTL).Err(); err != nil {
		log.Printf("redis tier set failed: key=%s err=%v", key, err)
	}
}
