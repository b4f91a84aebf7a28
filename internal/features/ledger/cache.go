// Package ledger — cache.go хранит рейтинг в Redis на короткое время.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const leaderboardKeyPrefix = "gamification:leaderboard:"

// RedisCache — кэш рейтинга в Redis с TTL.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache создаёт кэш рейтинга.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func leaderboardKey(period Period, limit int) string {
	return fmt.Sprintf("%s%s:%d", leaderboardKeyPrefix, period, limit)
}

// GetLeaderboard читает рейтинг из кэша. Любая ошибка — промах.
func (c *RedisCache) GetLeaderboard(ctx context.Context, period Period, limit int) ([]LeaderboardEntry, bool) {
	raw, err := c.client.Get(ctx, leaderboardKey(period, limit)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).Warn("Ошибка чтения кэша рейтинга")
		}
		return nil, false
	}
	var entries []LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.WithError(err).Warn("Повреждённая запись кэша рейтинга")
		return nil, false
	}
	return entries, true
}

// SetLeaderboard сохраняет рейтинг в кэш на ttl.
func (c *RedisCache) SetLeaderboard(ctx context.Context, period Period, limit int, entries []LeaderboardEntry) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, leaderboardKey(period, limit), raw, c.ttl).Err(); err != nil {
		log.WithError(err).Warn("Ошибка записи кэша рейтинга")
	}
}

// Invalidate удаляет все закэшированные рейтинги.
func (c *RedisCache) Invalidate(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, leaderboardKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.WithError(err).Warn("Ошибка обхода кэша рейтинга")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.WithError(err).Warn("Ошибка очистки кэша рейтинга")
	}
}
