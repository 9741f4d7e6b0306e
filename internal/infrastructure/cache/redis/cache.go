package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

const keyPrefix = "intellidocs:classification:"

type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ClassificationCache stores model classifications as JSON strings with a TTL.
type ClassificationCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// Connect dials redis and fails fast when it is unreachable.
func Connect(ctx context.Context, opts Options) (*ClassificationCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:                  opts.Addr,
		Password:              opts.Password,
		DB:                    opts.DB,
		ContextTimeoutEnabled: true,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, opts.TTL), nil
}

func New(client *goredis.Client, ttl time.Duration) *ClassificationCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ClassificationCache{client: client, ttl: ttl}
}

func (c *ClassificationCache) Get(ctx context.Context, key string) (domain.Classification, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.Classification{}, false, nil
	}
	if err != nil {
		return domain.Classification{}, false, domain.WrapError(domain.ErrTemporary, "redis get classification", err)
	}

	var cls domain.Classification
	if err := json.Unmarshal([]byte(raw), &cls); err != nil {
		return domain.Classification{}, false, fmt.Errorf("decode cached classification: %w", err)
	}
	if !cls.Category.Valid() {
		return domain.Classification{}, false, nil
	}
	return cls, true, nil
}

func (c *ClassificationCache) Set(ctx context.Context, key string, cls domain.Classification) error {
	payload, err := json.Marshal(cls)
	if err != nil {
		return fmt.Errorf("encode classification: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, payload, c.ttl).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "redis set classification", err)
	}
	return nil
}

func (c *ClassificationCache) Close() error {
	return c.client.Close()
}
