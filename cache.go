package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// grantsCacheKey generates a Redis key for an employee's grants snapshot.
func (s *RBACService) grantsCacheKey(empID uint) string {
	return fmt.Sprintf("%sgrants:%d", s.cachePrefix, empID)
}

// getCachedGrants returns a cached snapshot, or nil on a miss or when caching is disabled.
func (s *RBACService) getCachedGrants(ctx context.Context, empID uint) (*grantSet, error) {
	if s.redisClient == nil {
		return nil, nil
	}

	raw, err := s.redisClient.Get(ctx, s.grantsCacheKey(empID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var g grantSet
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// setCachedGrants caches a grants snapshot.
func (s *RBACService) setCachedGrants(ctx context.Context, empID uint, g *grantSet) error {
	if s.redisClient == nil {
		return nil
	}

	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return s.redisClient.Set(ctx, s.grantsCacheKey(empID), raw, s.cacheTTL).Err()
}

// invalidateGrants drops the cached snapshot for one employee, or for everyone when empID is 0.
func (s *RBACService) invalidateGrants(ctx context.Context, empID uint) {
	if s.redisClient == nil {
		return
	}

	if empID != 0 {
		if err := s.redisClient.Del(ctx, s.grantsCacheKey(empID)).Err(); err != nil {
			s.log.Warnw("failed to invalidate grants cache", "employee_id", empID, "error", err)
		}
		return
	}
	if err := s.deleteByPattern(ctx, s.cachePrefix+"grants:*"); err != nil {
		s.log.Warnw("failed to invalidate grants cache", "error", err)
	}
}

// ClearAllCache clears every key under the configured prefix.
func (s *RBACService) ClearAllCache(ctx context.Context) error {
	if s.redisClient == nil {
		return nil
	}
	return s.deleteByPattern(ctx, s.cachePrefix+"*")
}

func (s *RBACService) deleteByPattern(ctx context.Context, pattern string) error {
	iter := s.redisClient.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return s.redisClient.Del(ctx, keys...).Err()
	}
	return nil
}

// GetCacheStats returns cache statistics
func (s *RBACService) GetCacheStats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"cache_prefix":      s.cachePrefix,
		"redis_enabled":     s.redisClient != nil,
		"cache_ttl_minutes": s.cacheTTL.Minutes(),
	}

	if s.redisClient != nil {
		var count int
		iter := s.redisClient.Scan(ctx, 0, s.cachePrefix+"grants:*", 100).Iterator()
		for iter.Next(ctx) {
			count++
		}
		if iter.Err() == nil {
			stats["cached_grant_sets"] = count
		}
	}

	return stats
}
