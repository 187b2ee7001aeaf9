package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedFixture(t *testing.T) (*fixture, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := newFixture(t, func(c *Config) {
		c.RedisClient = client
		c.CacheTTL = time.Minute
		c.CachePrefix = "test:"
	})
	return f, mr
}

func TestGrantsCache_PopulatedOnRead(t *testing.T) {
	f, mr := newCachedFixture(t)
	ctx := context.Background()

	mr.FlushAll()
	_, err := f.svc.HasRole(ctx, bobID, RoleManager)
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:grants:2"))
	assert.Equal(t, time.Minute, mr.TTL("test:grants:2"))
}

func TestGrantsCache_InvalidatedOnRoleChange(t *testing.T) {
	f, mr := newCachedFixture(t)
	ctx := context.Background()

	ok, err := f.svc.HasRole(ctx, bobID, RoleManager)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists("test:grants:2"))

	require.NoError(t, f.svc.RevokeRole(ctx, bobID, f.roles[RoleManager]))
	assert.False(t, mr.Exists("test:grants:2"))

	ok, err = f.svc.HasRole(ctx, bobID, RoleManager)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrantsCache_InvalidatedOnPermissionChange(t *testing.T) {
	f, mr := newCachedFixture(t)
	ctx := context.Background()

	for _, id := range []uint{bobID, aliceID, danaID} {
		_, err := f.svc.GetEmployeePermissions(ctx, id)
		require.NoError(t, err)
	}
	require.Len(t, mr.Keys(), 3)

	require.NoError(t, f.svc.GrantPermission(ctx, f.roles[RoleEmployee], f.perms[PermViewTeamEmployees]))
	assert.Empty(t, mr.Keys())

	ok, err := f.svc.HasPermission(ctx, aliceID, PermViewTeamEmployees, ResourceEmployees)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClearAllCacheAndStats(t *testing.T) {
	f, mr := newCachedFixture(t)
	ctx := context.Background()

	_, err := f.svc.HasRole(ctx, bobID, RoleManager)
	require.NoError(t, err)
	_, err = f.svc.HasRole(ctx, aliceID, RoleManager)
	require.NoError(t, err)
	mr.Set("other:key", "kept")

	stats := f.svc.GetCacheStats(ctx)
	assert.Equal(t, true, stats["redis_enabled"])
	assert.Equal(t, "test:", stats["cache_prefix"])
	assert.Equal(t, 2, stats["cached_grant_sets"])

	require.NoError(t, f.svc.ClearAllCache(ctx))
	assert.Equal(t, []string{"other:key"}, mr.Keys())
}

func TestGrantsCache_FallsBackWhenRedisIsDown(t *testing.T) {
	f, mr := newCachedFixture(t)
	mr.Close()

	ok, err := f.svc.HasRole(context.Background(), danaID, RoleHR)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetCacheStats_Disabled(t *testing.T) {
	svc, _ := newTestService(t)

	stats := svc.GetCacheStats(context.Background())
	assert.Equal(t, false, stats["redis_enabled"])
	assert.NotContains(t, stats, "cached_grant_sets")
	assert.NoError(t, svc.ClearAllCache(context.Background()))
}
