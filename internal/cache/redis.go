package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// Redis backs the answer cache with a Redis server. Errors degrade to cache
// misses; a lost cache write never fails a query.
type Redis struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewRedis(client *redisv9.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, c.redisKey(key)).Result()
	if err == redisv9.Nil {
		return "", false
	}
	if err != nil {
		log.Printf("redis get answer failed: %v", err)
		return "", false
	}
	return raw, true
}

func (c *Redis) Set(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, c.redisKey(key), value, c.ttl).Err(); err != nil {
		log.Printf("redis set answer failed: %v", err)
	}
}

func (c *Redis) redisKey(key string) string {
	return fmt.Sprintf("docquery:answer:%s", key)
}
