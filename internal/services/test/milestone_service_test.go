package services_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	"github.com/bionicotaku/lingo-utils/txmanager"
	kratoserrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// fakeMilestoneStore 以互斥锁复刻共享状态表的 check-and-set 语义。
type fakeMilestoneStore struct {
	mu      sync.Mutex
	crossed map[string]bool
	entries []po.ContentMilestone
	err     error
}

func newFakeMilestoneStore() *fakeMilestoneStore {
	return &fakeMilestoneStore{crossed: make(map[string]bool)}
}

func milestoneKey(contentID uuid.UUID, metric po.MetricType, threshold int64) string {
	return fmt.Sprintf("%s|%s|%d", contentID, metric, threshold)
}

func (s *fakeMilestoneStore) MarkCrossed(_ context.Context, _ txmanager.Session, contentID uuid.UUID, metric po.MetricType, threshold int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	key := milestoneKey(contentID, metric, threshold)
	if s.crossed[key] {
		return false, nil
	}
	s.crossed[key] = true
	s.entries = append(s.entries, po.ContentMilestone{
		ContentID: contentID,
		Metric:    metric,
		Threshold: threshold,
		CrossedAt: time.Now().UTC(),
	})
	return true, nil
}

func (s *fakeMilestoneStore) ListCrossed(_ context.Context, _ txmanager.Session, contentID uuid.UUID) ([]po.ContentMilestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []po.ContentMilestone
	for _, entry := range s.entries {
		if entry.ContentID == contentID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Metric != out[j].Metric {
			return out[i].Metric < out[j].Metric
		}
		return out[i].Threshold < out[j].Threshold
	})
	return out, nil
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []string
	err        error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, contentID uuid.UUID, _ string, metric po.MetricType, threshold int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, milestoneKey(contentID, metric, threshold))
	return nil
}

type milestoneEnv struct {
	uc         *services.MilestoneUsecase
	store      *fakeMilestoneStore
	stats      *fakeStatsRepo
	content    *fakeContentStore
	dispatcher *fakeDispatcher
}

func newMilestoneEnv() *milestoneEnv {
	logger := log.NewStdLogger(io.Discard)
	env := &milestoneEnv{
		store:      newFakeMilestoneStore(),
		stats:      newFakeStatsRepo(),
		content:    newFakeContentStore(),
		dispatcher: &fakeDispatcher{},
	}
	env.uc = services.NewMilestoneUsecase(env.store, env.stats, env.content, env.dispatcher, services.DefaultThresholdLadders(), logger)
	return env
}

func viewStats(contentID uuid.UUID, views int64) *po.ContentEngagementStats {
	return &po.ContentEngagementStats{ContentID: contentID, ViewCount: views}
}

func TestEvaluate_FiresCrossedThresholdsAscendingOnce(t *testing.T) {
	env := newMilestoneEnv()
	contentID := uuid.New()

	crossings, err := env.uc.Evaluate(context.Background(), "video", viewStats(contentID, 12_000))
	require.NoError(t, err)
	require.Len(t, crossings, 3)
	require.Equal(t, int64(1_000), crossings[0].Threshold)
	require.Equal(t, int64(5_000), crossings[1].Threshold)
	require.Equal(t, int64(10_000), crossings[2].Threshold)
	require.Len(t, env.dispatcher.dispatched, 3)

	// 同值重检：全部阈值已登记，不再触发。
	crossings, err = env.uc.Evaluate(context.Background(), "video", viewStats(contentID, 12_000))
	require.NoError(t, err)
	require.Empty(t, crossings)
	require.Len(t, env.dispatcher.dispatched, 3)
}

func TestEvaluate_BelowFirstThresholdFiresNothing(t *testing.T) {
	env := newMilestoneEnv()

	crossings, err := env.uc.Evaluate(context.Background(), "video", viewStats(uuid.New(), 999))
	require.NoError(t, err)
	require.Empty(t, crossings)
	require.Empty(t, env.store.crossed)
}

func TestEvaluate_IncrementalGrowthFiresEachOnce(t *testing.T) {
	env := newMilestoneEnv()
	contentID := uuid.New()

	crossings, err := env.uc.Evaluate(context.Background(), "video", viewStats(contentID, 1_500))
	require.NoError(t, err)
	require.Len(t, crossings, 1)
	require.Equal(t, int64(1_000), crossings[0].Threshold)

	crossings, err = env.uc.Evaluate(context.Background(), "video", viewStats(contentID, 6_000))
	require.NoError(t, err)
	require.Len(t, crossings, 1)
	require.Equal(t, int64(5_000), crossings[0].Threshold)
}

func TestEvaluate_CounterRollbackNeverRefires(t *testing.T) {
	env := newMilestoneEnv()
	contentID := uuid.New()

	_, err := env.uc.Evaluate(context.Background(), "video", viewStats(contentID, 1_200))
	require.NoError(t, err)

	// 审核回滚使计数跌破阈值：既有登记保留。
	crossings, err := env.uc.Evaluate(context.Background(), "video", viewStats(contentID, 900))
	require.NoError(t, err)
	require.Empty(t, crossings)

	// 回升再次越线：登记仍在，不会二次触发。
	crossings, err = env.uc.Evaluate(context.Background(), "video", viewStats(contentID, 1_100))
	require.NoError(t, err)
	require.Empty(t, crossings)
	require.Len(t, env.dispatcher.dispatched, 1)
}

func TestEvaluate_ConcurrentChecksFireEachThresholdOnce(t *testing.T) {
	env := newMilestoneEnv()
	contentID := uuid.New()

	const workers = 50
	var (
		mu    sync.Mutex
		total int
	)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			crossings, err := env.uc.Evaluate(ctx, "video", viewStats(contentID, 12_000))
			if err != nil {
				return err
			}
			mu.Lock()
			total += len(crossings)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 3, total)
	require.Len(t, env.dispatcher.dispatched, 3)
}

func TestEvaluate_MultipleMetrics(t *testing.T) {
	env := newMilestoneEnv()
	stats := &po.ContentEngagementStats{
		ContentID:  uuid.New(),
		ViewCount:  1_200,
		LikeCount:  600,
		ShareCount: 40,
	}

	crossings, err := env.uc.Evaluate(context.Background(), "video", stats)
	require.NoError(t, err)
	// views: 1000；likes: 100, 500；shares 未达 50。
	require.Len(t, crossings, 3)
	require.Equal(t, po.MetricViews, crossings[0].Metric)
	require.Equal(t, po.MetricLikes, crossings[1].Metric)
	require.Equal(t, po.MetricLikes, crossings[2].Metric)
}

func TestEvaluate_DispatchFailureKeepsRegistration(t *testing.T) {
	env := newMilestoneEnv()
	env.dispatcher.err = fmt.Errorf("notify down")
	contentID := uuid.New()

	crossings, err := env.uc.Evaluate(context.Background(), "video", viewStats(contentID, 1_200))
	require.NoError(t, err)
	require.Len(t, crossings, 1)

	// 通知失败不回滚登记：恢复后重检也不会重复触发。
	env.dispatcher.err = nil
	crossings, err = env.uc.Evaluate(context.Background(), "video", viewStats(contentID, 1_200))
	require.NoError(t, err)
	require.Empty(t, crossings)
	require.Empty(t, env.dispatcher.dispatched)
}

func TestEvaluate_StoreErrorSurfaces(t *testing.T) {
	env := newMilestoneEnv()
	env.store.err = fmt.Errorf("db down")

	_, err := env.uc.Evaluate(context.Background(), "video", viewStats(uuid.New(), 2_000))
	require.Error(t, err)
}

func TestEvaluate_NilStatsIsNoop(t *testing.T) {
	env := newMilestoneEnv()

	crossings, err := env.uc.Evaluate(context.Background(), "video", nil)
	require.NoError(t, err)
	require.Nil(t, crossings)
}

func TestCrossedMilestones_ListsRegistrationsInOrder(t *testing.T) {
	env := newMilestoneEnv()
	contentID := uuid.New()

	_, err := env.uc.Evaluate(context.Background(), "video", viewStats(contentID, 6_000))
	require.NoError(t, err)
	// 其他内容的登记不串扰。
	_, err = env.uc.Evaluate(context.Background(), "video", viewStats(uuid.New(), 1_500))
	require.NoError(t, err)

	list, err := env.uc.CrossedMilestones(context.Background(), contentID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, po.MetricViews, list[0].Metric)
	require.Equal(t, int64(1_000), list[0].Threshold)
	require.Equal(t, int64(5_000), list[1].Threshold)
	require.False(t, list[0].CrossedAt.IsZero())
}

func TestCrossedMilestones_EmptyForUntouchedContent(t *testing.T) {
	env := newMilestoneEnv()

	list, err := env.uc.CrossedMilestones(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestCheckMilestones_UnknownContent(t *testing.T) {
	env := newMilestoneEnv()

	_, err := env.uc.CheckMilestones(context.Background(), uuid.New())
	require.True(t, kratoserrors.IsNotFound(err))
}

func TestCheckMilestones_ReadsCurrentAggregate(t *testing.T) {
	env := newMilestoneEnv()
	contentID := uuid.New()
	env.content.add(contentID, "video")
	_, err := env.stats.Increment(context.Background(), nil, contentID, repositories.StatsDelta{ViewDelta: 2_000})
	require.NoError(t, err)

	crossings, err := env.uc.CheckMilestones(context.Background(), contentID)
	require.NoError(t, err)
	require.Len(t, crossings, 1)
	require.Equal(t, int64(1_000), crossings[0].Threshold)
	require.Equal(t, int64(2_000), crossings[0].Value)
}
