package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID string `json:"id"`
}

func newTestCache(t *testing.T) (*ListCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewListCache(client, time.Minute), mr
}

func countingLoader(calls *int, rows []row) func(context.Context) (any, error) {
	return func(context.Context) (any, error) {
		*calls++
		return rows, nil
	}
}

func TestFetch_CachesUntilInvalidated(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := countingLoader(&calls, []row{{ID: "a"}})

	var first []row
	require.NoError(t, c.Fetch(ctx, &first, loader))
	var second []row
	require.NoError(t, c.Fetch(ctx, &second, loader))

	assert.Equal(t, 1, calls)
	assert.Equal(t, []row{{ID: "a"}}, second)

	require.NoError(t, c.Invalidate(ctx))

	var third []row
	require.NoError(t, c.Fetch(ctx, &third, loader))
	assert.Equal(t, 2, calls)
}

func TestInvalidate_BumpsVersion(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	v1, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1)

	require.NoError(t, c.Invalidate(ctx))

	v2, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2)

	got, err := mr.Get(versionKey)
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestFetch_LoaderErrorNotCached(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	boom := errors.New("boom")
	var dest []row
	err := c.Fetch(ctx, &dest, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	calls := 0
	require.NoError(t, c.Fetch(ctx, &dest, countingLoader(&calls, []row{{ID: "b"}})))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []row{{ID: "b"}}, dest)
}

func TestDisabledCache(t *testing.T) {
	c := NewListCache(nil, time.Minute)
	ctx := context.Background()

	calls := 0
	loader := countingLoader(&calls, []row{{ID: "a"}})

	var dest []row
	require.NoError(t, c.Fetch(ctx, &dest, loader))
	require.NoError(t, c.Fetch(ctx, &dest, loader))
	assert.Equal(t, 2, calls)

	assert.NoError(t, c.Invalidate(ctx))
}

func TestFetch_RequiresLoader(t *testing.T) {
	c := NewListCache(nil, time.Minute)

	var dest []row
	assert.Error(t, c.Fetch(context.Background(), &dest, nil))
}
