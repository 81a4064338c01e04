package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/playgrid/arena/repositories"
	"github.com/redis/go-redis/v9"
)

const globalScopeKey = "rank:global"

// RankCache mirrors the advisory cached ranks into Redis so display
// surfaces can read them without touching the database. It is never
// consulted for correctness: live rank queries always sort the source
// of truth.
type RankCache struct {
	rdb *redis.Client
}

func NewRankCache(addr string, db int) (*RankCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RankCache{rdb: rdb}, nil
}

func (c *RankCache) Close() error {
	return c.rdb.Close()
}

func scopeKey(game string) string {
	if game == "" {
		return globalScopeKey
	}
	return "rank:game:" + game
}

// StoreRanks replaces a scope's hash (user id -> rank) with the batch
// re-rank output. The whole write happens in one pipeline so readers
// never observe a half-written scope.
func (c *RankCache) StoreRanks(ctx context.Context, entries []repositories.RankEntry) error {
	byScope := make(map[string]map[string]interface{})
	for _, e := range entries {
		key := scopeKey(e.Game)
		if byScope[key] == nil {
			byScope[key] = make(map[string]interface{})
		}
		byScope[key][strconv.Itoa(e.UserID)] = e.Rank
	}

	pipe := c.rdb.TxPipeline()
	for key, fields := range byScope {
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store rank cache: %w", err)
	}
	return nil
}

// GetRank returns the cached rank for a user in a scope, or (0, false)
// when the cache has no entry.
func (c *RankCache) GetRank(ctx context.Context, game string, userID int) (int, bool, error) {
	val, err := c.rdb.HGet(ctx, scopeKey(game), strconv.Itoa(userID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	rank, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt rank cache entry for user %d: %w", userID, err)
	}
	return rank, true, nil
}
