package milestones

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"testing"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"

	"github.com/bionicotaku/lingo-utils/txmanager"
	kratoserrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeLister 以内存有序集合模拟键集分页。
type fakeLister struct {
	ids   []uuid.UUID
	pages int
}

func newFakeLister(n int) *fakeLister {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return &fakeLister{ids: ids}
}

func (l *fakeLister) ListContentIDs(_ context.Context, _ txmanager.Session, afterID uuid.UUID, limit int32) ([]uuid.UUID, error) {
	l.pages++
	var page []uuid.UUID
	for _, id := range l.ids {
		if bytes.Compare(id[:], afterID[:]) <= 0 {
			continue
		}
		page = append(page, id)
		if int32(len(page)) >= limit {
			break
		}
	}
	return page, nil
}

type fakeChecker struct {
	checked   map[uuid.UUID]int
	crossings map[uuid.UUID][]vo.MilestoneCrossing
	errFor    map[uuid.UUID]error
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{
		checked:   make(map[uuid.UUID]int),
		crossings: make(map[uuid.UUID][]vo.MilestoneCrossing),
		errFor:    make(map[uuid.UUID]error),
	}
}

func (c *fakeChecker) CheckMilestones(_ context.Context, contentID uuid.UUID) ([]vo.MilestoneCrossing, error) {
	c.checked[contentID]++
	if err := c.errFor[contentID]; err != nil {
		return nil, err
	}
	return c.crossings[contentID], nil
}

func newTestSweeper(t *testing.T, lister *fakeLister, checker *fakeChecker) *Sweeper {
	t.Helper()
	sweeper, err := NewSweeper(lister, checker, log.NewStdLogger(io.Discard))
	require.NoError(t, err)
	return sweeper
}

func TestSweeper_ScansAllPages(t *testing.T) {
	lister := newFakeLister(450)
	checker := newFakeChecker()
	sweeper := newTestSweeper(t, lister, checker)

	crossed, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, crossed)
	require.Len(t, checker.checked, 450)
	for id, n := range checker.checked {
		require.Equal(t, 1, n, "content %s checked more than once", id)
	}
	// 450 条按页大小 200 需要两满页、一部分页与一次空页确认。
	require.Equal(t, 4, lister.pages)
}

func TestSweeper_CountsNewlyCrossed(t *testing.T) {
	lister := newFakeLister(10)
	checker := newFakeChecker()
	checker.crossings[lister.ids[2]] = []vo.MilestoneCrossing{{Metric: "views", Threshold: 1_000}}
	checker.crossings[lister.ids[7]] = []vo.MilestoneCrossing{
		{Metric: "views", Threshold: 1_000},
		{Metric: "likes", Threshold: 100},
	}
	sweeper := newTestSweeper(t, lister, checker)

	crossed, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, crossed)
}

func TestSweeper_SkipsVanishedContent(t *testing.T) {
	lister := newFakeLister(5)
	checker := newFakeChecker()
	checker.errFor[lister.ids[1]] = kratoserrors.NotFound("ENGAGEMENT_CONTENT_NOT_FOUND", "content gone")
	checker.crossings[lister.ids[4]] = []vo.MilestoneCrossing{{Metric: "shares", Threshold: 50}}
	sweeper := newTestSweeper(t, lister, checker)

	crossed, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, crossed)
	require.Len(t, checker.checked, 5)
}

func TestSweeper_AbortsOnCheckerError(t *testing.T) {
	lister := newFakeLister(5)
	checker := newFakeChecker()
	checker.errFor[lister.ids[2]] = fmt.Errorf("store down")
	sweeper := newTestSweeper(t, lister, checker)

	_, err := sweeper.Run(context.Background())
	require.Error(t, err)
	require.Len(t, checker.checked, 3)
}

func TestSweeper_StopsWhenContextCancelled(t *testing.T) {
	lister := newFakeLister(5)
	checker := newFakeChecker()
	sweeper := newTestSweeper(t, lister, checker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sweeper.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, checker.checked)
}

func TestSweeper_EmptyTableIsNoop(t *testing.T) {
	lister := newFakeLister(0)
	checker := newFakeChecker()
	sweeper := newTestSweeper(t, lister, checker)

	crossed, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, crossed)
	require.Equal(t, 1, lister.pages)
}

func TestSweeper_RequiresDependencies(t *testing.T) {
	logger := log.NewStdLogger(io.Discard)
	_, err := NewSweeper(nil, newFakeChecker(), logger)
	require.Error(t, err)
	_, err = NewSweeper(newFakeLister(0), nil, logger)
	require.Error(t, err)
}
