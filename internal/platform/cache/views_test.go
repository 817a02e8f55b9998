package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type viewModel struct {
	Status string `json:"status"`
}

func newTestCache(t *testing.T) (*ViewCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewViewCache(client, time.Minute), mr
}

func TestFetchJSONCachesUntilInvalidated(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0
	status := "draft"
	loader := func(context.Context) (any, error) {
		calls++
		return viewModel{Status: status}, nil
	}

	var got viewModel
	require.NoError(t, cache.FetchJSON(ctx, "quotation", "q1", &got, loader))
	require.Equal(t, "draft", got.Status)

	status = "sent"
	require.NoError(t, cache.FetchJSON(ctx, "quotation", "q1", &got, loader))
	require.Equal(t, "draft", got.Status)
	require.Equal(t, 1, calls)

	require.NoError(t, cache.Invalidate(ctx, "q1"))
	require.NoError(t, cache.FetchJSON(ctx, "quotation", "q1", &got, loader))
	require.Equal(t, "sent", got.Status)
	require.Equal(t, 2, calls)

	ver, err := cache.Version(ctx, "q1")
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)
}

func TestFetchJSONLoaderError(t *testing.T) {
	cache, _ := newTestCache(t)
	boom := errors.New("boom")
	var got viewModel
	err := cache.FetchJSON(context.Background(), "quotation", "q1", &got, func(context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestNilCacheFallsThrough(t *testing.T) {
	var cache *ViewCache
	var got viewModel
	require.NoError(t, cache.FetchJSON(context.Background(), "rfi", "r1", &got, func(context.Context) (any, error) {
		return viewModel{Status: "open"}, nil
	}))
	require.Equal(t, "open", got.Status)
	require.NoError(t, cache.Invalidate(context.Background(), "r1"))
}

func TestListenReceivesInvalidations(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- cache.Listen(ctx, func(id string) {
			select {
			case received <- id:
			default:
			}
		})
	}()

	require.Eventually(t, func() bool {
		_ = cache.Invalidate(context.Background(), "r9")
		select {
		case id := <-received:
			return id == "r9"
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
