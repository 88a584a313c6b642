// Package milestones 提供里程碑补偿扫描：对所有有聚合记录的内容重新执行
// 阈值探测。阈值表上调后或通知通道故障恢复后运行，可补发遗漏的里程碑。
// 状态表的 check-and-set 保证重复扫描不会二次触发既有阈值。
package milestones

import (
	"context"
	"fmt"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	"github.com/bionicotaku/lingo-utils/txmanager"
	kratoserrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

const defaultPageSize = 200

// statsLister 定义扫描所需的聚合枚举行为。
type statsLister interface {
	ListContentIDs(ctx context.Context, sess txmanager.Session, afterID uuid.UUID, limit int32) ([]uuid.UUID, error)
}

// milestoneChecker 定义单内容的里程碑重检行为。
type milestoneChecker interface {
	CheckMilestones(ctx context.Context, contentID uuid.UUID) ([]vo.MilestoneCrossing, error)
}

// Sweeper 按键集分页遍历聚合表并逐内容重检里程碑。
type Sweeper struct {
	stats    statsLister
	checker  milestoneChecker
	pageSize int32
	log      *log.Helper
}

// NewSweeper 构造补偿扫描器。
func NewSweeper(stats statsLister, checker milestoneChecker, logger log.Logger) (*Sweeper, error) {
	if stats == nil {
		return nil, fmt.Errorf("milestones: stats lister is required")
	}
	if checker == nil {
		return nil, fmt.Errorf("milestones: milestone checker is required")
	}
	return &Sweeper{
		stats:    stats,
		checker:  checker,
		pageSize: defaultPageSize,
		log:      log.NewHelper(logger),
	}, nil
}

// Run 执行一轮全量扫描，返回本轮新跨越的里程碑总数。
// 内容在扫描间隙被删除属正常情况，跳过不中断。
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	var (
		crossed int
		afterID uuid.UUID
		scanned int
	)
	for {
		ids, err := s.stats.ListContentIDs(ctx, nil, afterID, s.pageSize)
		if err != nil {
			return crossed, fmt.Errorf("list content page after %s: %w", afterID, err)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return crossed, err
			}
			crossings, err := s.checker.CheckMilestones(ctx, id)
			if err != nil {
				if kratoserrors.IsNotFound(err) {
					s.log.WithContext(ctx).Debugf("milestone sweep: content %s gone, skipping", id)
					continue
				}
				return crossed, fmt.Errorf("check milestones for %s: %w", id, err)
			}
			crossed += len(crossings)
		}
		scanned += len(ids)
		afterID = ids[len(ids)-1]
	}
	s.log.WithContext(ctx).Infof("milestone sweep finished: scanned=%d newly_crossed=%d", scanned, crossed)
	return crossed, nil
}

// ProvideSweeper 装配补偿扫描器。依赖缺失时返回 nil。
func ProvideSweeper(stats *repositories.EngagementStatsRepository, uc *services.MilestoneUsecase, logger log.Logger) *Sweeper {
	if stats == nil || uc == nil || logger == nil {
		return nil
	}
	sweeper, err := NewSweeper(stats, uc, logger)
	if err != nil {
		log.NewHelper(logger).Errorw("msg", "init milestone sweeper failed", "error", err)
		return nil
	}
	return sweeper
}
