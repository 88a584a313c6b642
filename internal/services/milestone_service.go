package services

import (
	"context"
	"fmt"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// MilestoneStore 定义已跨越阈值集合的原子登记与回读行为。
type MilestoneStore interface {
	MarkCrossed(ctx context.Context, sess txmanager.Session, contentID uuid.UUID, metric po.MetricType, threshold int64) (bool, error)
	ListCrossed(ctx context.Context, sess txmanager.Session, contentID uuid.UUID) ([]po.ContentMilestone, error)
}

// NotificationDispatcher 是下游通知协作方的窄接口。
// 调用为 fire-and-forget：失败只记录，不回滚里程碑状态。
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, contentID uuid.UUID, contentType string, metric po.MetricType, threshold int64) error
}

var _ MilestoneStore = (*repositories.MilestoneRepository)(nil)

// ThresholdLadders 按指标给出升序阈值表。
type ThresholdLadders map[po.MetricType][]int64

// DefaultThresholdLadders 返回生产默认阈值表。
func DefaultThresholdLadders() ThresholdLadders {
	return ThresholdLadders{
		po.MetricViews:    {1_000, 5_000, 10_000, 50_000, 100_000},
		po.MetricLikes:    {100, 500, 1_000, 5_000, 10_000},
		po.MetricShares:   {50, 100, 500, 1_000},
		po.MetricComments: {100, 500, 1_000},
	}
}

// metricOrder 固定指标遍历顺序，保证跨调用的确定性输出。
var metricOrder = []po.MetricType{po.MetricViews, po.MetricLikes, po.MetricShares, po.MetricComments, po.MetricDownloads}

// MilestoneUsecase 实现里程碑探测：对照阈值表找出新跨越的阈值，
// 以共享状态表的 check-and-set 保证每个阈值至多通知一次。
type MilestoneUsecase struct {
	store      MilestoneStore
	stats      StatsRepo
	content    ContentStore
	dispatcher NotificationDispatcher
	ladders    ThresholdLadders
	log        *log.Helper
}

// NewMilestoneUsecase 构造里程碑用例。dispatcher 可为 nil（仅登记不通知）。
func NewMilestoneUsecase(store MilestoneStore, stats StatsRepo, content ContentStore, dispatcher NotificationDispatcher, ladders ThresholdLadders, logger log.Logger) *MilestoneUsecase {
	if ladders == nil {
		ladders = DefaultThresholdLadders()
	}
	return &MilestoneUsecase{
		store:      store,
		stats:      stats,
		content:    content,
		dispatcher: dispatcher,
		ladders:    ladders,
		log:        log.NewHelper(logger),
	}
}

// CheckMilestones 读取当前聚合并返回本次新跨越的里程碑。
func (uc *MilestoneUsecase) CheckMilestones(ctx context.Context, contentID uuid.UUID) ([]vo.MilestoneCrossing, error) {
	info, err := uc.content.Lookup(ctx, nil, contentID)
	if err != nil {
		return nil, fmt.Errorf("lookup content for milestones: %w", err)
	}
	if info == nil {
		return nil, ErrContentNotFound
	}
	stats, err := uc.stats.Get(ctx, nil, contentID)
	if err != nil {
		return nil, fmt.Errorf("read stats for milestones: %w", err)
	}
	return uc.Evaluate(ctx, info.ContentType, stats)
}

// CrossedMilestones 返回某内容已登记的全部里程碑，按指标、阈值升序，
// 供通知补发与审计使用。指标回落不影响既有登记。
func (uc *MilestoneUsecase) CrossedMilestones(ctx context.Context, contentID uuid.UUID) ([]po.ContentMilestone, error) {
	milestones, err := uc.store.ListCrossed(ctx, nil, contentID)
	if err != nil {
		return nil, fmt.Errorf("list crossed milestones: %w", err)
	}
	return milestones, nil
}

// Evaluate 对给定聚合执行阈值扫描。
//
// 对每个指标按阈值升序处理：value ≥ t 且状态表登记成功（本调用为插入者）
// 才通知并返回该阈值。登记 happens-before 通知，并发检查与重复调用都不会
// 使同一阈值二次触发；指标回落不会清除既有登记。
func (uc *MilestoneUsecase) Evaluate(ctx context.Context, contentType string, stats *po.ContentEngagementStats) ([]vo.MilestoneCrossing, error) {
	if stats == nil {
		return nil, nil
	}

	var crossings []vo.MilestoneCrossing
	for _, metric := range metricOrder {
		ladder, ok := uc.ladders[metric]
		if !ok {
			continue
		}
		value := stats.Counter(metric)
		for _, threshold := range ladder {
			if value < threshold {
				break
			}
			inserted, err := uc.store.MarkCrossed(ctx, nil, stats.ContentID, metric, threshold)
			if err != nil {
				return crossings, fmt.Errorf("mark milestone %s/%d: %w", metric, threshold, err)
			}
			if !inserted {
				continue
			}

			crossing := vo.MilestoneCrossing{
				ContentID: stats.ContentID,
				Metric:    metric,
				Threshold: threshold,
				Value:     value,
			}
			crossings = append(crossings, crossing)
			uc.log.WithContext(ctx).Infof("milestone crossed: content_id=%s metric=%s threshold=%d value=%d", stats.ContentID, metric, threshold, value)

			if uc.dispatcher != nil {
				if err := uc.dispatcher.Dispatch(ctx, stats.ContentID, contentType, metric, threshold); err != nil {
					// 通知丢失可接受，重复通知不可接受：状态已登记，只记录失败。
					uc.log.WithContext(ctx).Warnf("milestone dispatch failed: content_id=%s metric=%s threshold=%d err=%v", stats.ContentID, metric, threshold, err)
				}
			}
		}
	}
	return crossings, nil
}
