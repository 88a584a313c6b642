package cache_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*cache.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, cleanup, err := cache.New(cache.Config{URL: "redis://" + mr.Addr()}, log.NewStdLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return client, mr
}

func TestClient_DisabledWithoutURL(t *testing.T) {
	client, cleanup, err := cache.New(cache.Config{}, log.NewStdLogger(io.Discard))
	require.NoError(t, err)
	defer cleanup()

	require.False(t, client.Ready())

	_, ok := client.Get(context.Background(), "k")
	require.False(t, ok)

	// 禁用态下写入与删除为空操作，不 panic。
	client.Set(context.Background(), "k", []byte("v"), time.Minute)
	client.Delete(context.Background(), "k")
	client.DeletePattern(context.Background(), "k*")

	computes := 0
	value, hit, err := client.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		computes++
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, []byte("fresh"), value)
	require.Equal(t, 1, computes)
}

func TestClient_SetGetRoundtrip(t *testing.T) {
	client, mr := newTestClient(t)
	require.True(t, client.Ready())

	client.Set(context.Background(), "engagement:aggregate:a", []byte(`{"view_count":7}`), time.Minute)

	value, ok := client.Get(context.Background(), "engagement:aggregate:a")
	require.True(t, ok)
	require.Equal(t, []byte(`{"view_count":7}`), value)

	// TTL 到期后未命中。
	mr.FastForward(2 * time.Minute)
	_, ok = client.Get(context.Background(), "engagement:aggregate:a")
	require.False(t, ok)
}

func TestClient_GetOrComputeBackfills(t *testing.T) {
	client, _ := newTestClient(t)

	computes := 0
	compute := func(context.Context) ([]byte, error) {
		computes++
		return []byte("payload"), nil
	}

	value, hit, err := client.GetOrCompute(context.Background(), "k", time.Minute, compute)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, []byte("payload"), value)

	value, hit, err = client.GetOrCompute(context.Background(), "k", time.Minute, compute)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []byte("payload"), value)
	require.Equal(t, 1, computes)
}

func TestClient_GetOrComputeSurfacesComputeError(t *testing.T) {
	client, _ := newTestClient(t)

	wantErr := fmt.Errorf("store down")
	_, hit, err := client.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.False(t, hit)

	_, ok := client.Get(context.Background(), "k")
	require.False(t, ok)
}

func TestClient_DeletePatternSpansScanPages(t *testing.T) {
	client, mr := newTestClient(t)

	// 超过单页 SCAN 大小，验证游标翻页。
	for i := 0; i < 250; i++ {
		client.Set(context.Background(), fmt.Sprintf("engagement:aggregate:c1:%d", i), []byte("x"), time.Minute)
	}
	client.Set(context.Background(), "engagement:aggregate:c2", []byte("keep"), time.Minute)

	client.DeletePattern(context.Background(), "engagement:aggregate:c1:*")

	for i := 0; i < 250; i++ {
		require.False(t, mr.Exists(fmt.Sprintf("engagement:aggregate:c1:%d", i)))
	}
	require.True(t, mr.Exists("engagement:aggregate:c2"))
}

func TestClient_DegradesOnBackendFailure(t *testing.T) {
	client, mr := newTestClient(t)
	require.True(t, client.Ready())

	mr.Close()

	// 后端不可达：首次失败触发降级，之后全部直通。
	client.Set(context.Background(), "k", []byte("v"), time.Minute)
	require.False(t, client.Ready())

	_, ok := client.Get(context.Background(), "k")
	require.False(t, ok)

	computes := 0
	value, hit, err := client.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		computes++
		return []byte("direct"), nil
	})
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, []byte("direct"), value)
	require.Equal(t, 1, computes)

	stats := client.Stats()
	require.NotZero(t, stats.Errors)
}

func TestClient_StatsCounters(t *testing.T) {
	client, _ := newTestClient(t)

	client.Set(context.Background(), "k", []byte("v"), time.Minute)
	_, _ = client.Get(context.Background(), "k")
	_, _ = client.Get(context.Background(), "missing")
	client.Delete(context.Background(), "k")

	stats := client.Stats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, uint64(1), stats.Sets)
	require.Equal(t, uint64(1), stats.Deletes)
}

func TestClient_RejectsMalformedURL(t *testing.T) {
	_, _, err := cache.New(cache.Config{URL: "::bad::"}, log.NewStdLogger(io.Discard))
	require.Error(t, err)
}
