package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// InvalidationChannel carries entity ids whose cached views must be rebuilt.
const InvalidationChannel = "views.invalidate"

const versionPrefix = "views:version:"

// ViewCache stores rendered read models in Redis under keys versioned per
// entity. Invalidation bumps the version so stale keys are never read again.
type ViewCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewViewCache instantiates the cache helper. A nil client disables caching.
func NewViewCache(client *redis.Client, ttl time.Duration) *ViewCache {
	return &ViewCache{client: client, ttl: ttl}
}

// Version returns the current version for the entity, 0 when never bumped.
func (c *ViewCache) Version(ctx context.Context, entityID string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionPrefix+entityID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Key composes the cache key for an entity view at its current version.
func (c *ViewCache) Key(ctx context.Context, view, entityID string) (string, error) {
	ver, err := c.Version(ctx, entityID)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{"views", view, entityID, strconv.FormatInt(ver, 10)}, ":"), nil
}

// FetchJSON loads a cached view or populates it using the loader. Concurrent
// misses for the same key share one loader call.
func (c *ViewCache) FetchJSON(ctx context.Context, view, entityID string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	key, err := c.Key(ctx, view, entityID)
	if err != nil {
		return err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	raw, err, _ := c.group.Do(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

// Invalidate bumps the entity version and announces it to other replicas.
func (c *ViewCache) Invalidate(ctx context.Context, entityID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if entityID == "" {
		return errors.New("cache: entity id required")
	}
	if err := c.client.Incr(ctx, versionPrefix+entityID).Err(); err != nil {
		return fmt.Errorf("platform/cache: bump %s: %w", entityID, err)
	}
	return c.client.Publish(ctx, InvalidationChannel, entityID).Err()
}

// Listen subscribes to invalidation announcements until ctx is done, calling
// fn for every entity id received. It blocks.
func (c *ViewCache) Listen(ctx context.Context, fn func(entityID string)) error {
	if c == nil || c.client == nil {
		<-ctx.Done()
		return nil
	}
	pubsub := c.client.Subscribe(ctx, InvalidationChannel)
	defer func() { _ = pubsub.Close() }()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if fn != nil && msg.Payload != "" {
				fn(msg.Payload)
			}
		}
	}
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
