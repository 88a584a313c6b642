package services

import (
	"context"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// 错误原因常量，供调用方通过 kratos errors 匹配。
const (
	ReasonInvalidArgument     = "ENGAGEMENT_INVALID_ARGUMENT"
	ReasonContentNotFound     = "ENGAGEMENT_CONTENT_NOT_FOUND"
	ReasonInteractionNotFound = "ENGAGEMENT_INTERACTION_NOT_FOUND"
	ReasonTransientFailure    = "ENGAGEMENT_TRANSIENT_FAILURE"
	ReasonQueryTimeout        = "ENGAGEMENT_QUERY_TIMEOUT"
)

// ErrContentNotFound 是内容不存在时返回的哨兵错误。
var ErrContentNotFound = errors.NotFound(ReasonContentNotFound, "content not found")

// ErrInteractionNotFound 是账本记录不存在时返回的哨兵错误。
var ErrInteractionNotFound = errors.NotFound(ReasonInteractionNotFound, "interaction not found")

// 写路径的有界重试参数。竞争失败在仓储层内部恢复，不参与此重试。
const (
	writeRetryAttempts = 3
	writeRetryBaseWait = 50 * time.Millisecond
)

// InteractionRepo 定义互动账本所需的持久化行为。
type InteractionRepo interface {
	Find(ctx context.Context, sess txmanager.Session, userID, contentID uuid.UUID, kind po.InteractionKind) (*po.Interaction, error)
	CreateFirstQualified(ctx context.Context, sess txmanager.Session, input repositories.CreateInteractionInput) (*repositories.CreateOutcome, error)
	AppendSample(ctx context.Context, sess txmanager.Session, input repositories.AppendSampleInput) (*po.Interaction, error)
	Samples(ctx context.Context, sess txmanager.Session, interactionID uuid.UUID) ([]po.InteractionSample, error)
	Remove(ctx context.Context, sess txmanager.Session, interactionID uuid.UUID) error
}

// StatsRepo 定义聚合计数的读写行为。
type StatsRepo interface {
	Increment(ctx context.Context, sess txmanager.Session, contentID uuid.UUID, delta repositories.StatsDelta) (*po.ContentEngagementStats, error)
	Get(ctx context.Context, sess txmanager.Session, contentID uuid.UUID) (*po.ContentEngagementStats, error)
}

// ContentStore 是内容元数据协作方的窄接口。
type ContentStore interface {
	Lookup(ctx context.Context, sess txmanager.Session, contentID uuid.UUID) (*repositories.ContentInfo, error)
}

// CacheInvalidator 使账本在聚合变化后失效读路径缓存。
type CacheInvalidator interface {
	DeletePattern(ctx context.Context, pattern string)
}

// RealtimePublisher 在聚合变化后做尽力而为的计数广播，可为 nil。
type RealtimePublisher interface {
	PublishCounter(ctx context.Context, update vo.CounterUpdate) error
}

// MilestoneEvaluator 在聚合变化后检查新跨越的里程碑。
type MilestoneEvaluator interface {
	Evaluate(ctx context.Context, contentType string, stats *po.ContentEngagementStats) ([]vo.MilestoneCrossing, error)
}

var (
	_ InteractionRepo = (*repositories.InteractionRepository)(nil)
	_ StatsRepo       = (*repositories.EngagementStatsRepository)(nil)
	_ ContentStore    = (*repositories.ContentRepository)(nil)
)

// InteractionUsecase 实现互动账本：每个 (user, content, kind) 恰好计数一次，
// 首个合格信号的创建事务即竞争裁决点。
type InteractionUsecase struct {
	repo       InteractionRepo
	stats      StatsRepo
	content    ContentStore
	txManager  txmanager.Manager
	policy     QualificationPolicy
	cache      CacheInvalidator
	realtime   RealtimePublisher
	milestones MilestoneEvaluator
	log        *log.Helper
}

// InteractionUsecaseParams 注入账本依赖。Cache/Realtime/Milestones 可为 nil。
type InteractionUsecaseParams struct {
	Repo       InteractionRepo
	Stats      StatsRepo
	Content    ContentStore
	TxManager  txmanager.Manager
	Policy     QualificationPolicy
	Cache      CacheInvalidator
	Realtime   RealtimePublisher
	Milestones MilestoneEvaluator
	Logger     log.Logger
}

// NewInteractionUsecase 构造账本用例。
func NewInteractionUsecase(params InteractionUsecaseParams) *InteractionUsecase {
	return &InteractionUsecase{
		repo:       params.Repo,
		stats:      params.Stats,
		content:    params.Content,
		txManager:  params.TxManager,
		policy:     params.Policy,
		cache:      params.Cache,
		realtime:   params.Realtime,
		milestones: params.Milestones,
		log:        log.NewHelper(params.Logger),
	}
}

// RecordInteractionInput 描述一次互动信号请求。
type RecordInteractionInput struct {
	UserID    uuid.UUID
	ContentID uuid.UUID
	Kind      po.InteractionKind
	Signal    Signal
}

// recordResult 收集事务内产出，事务提交后用于副作用。
type recordResult struct {
	stats        *po.ContentEngagementStats
	qualified    bool
	newlyCounted bool
}

// RecordInteraction 记录一次互动信号。
//
// 首个合格信号在单个事务内创建记录并原子递增聚合；创建竞争的失败方
// 通过仓储的 AlreadyExists 分支转入仅更新路径，绝不二次计数。
// 不合格且无记录的信号不落库，返回当前聚合与 UserHasQualified=false。
func (uc *InteractionUsecase) RecordInteraction(ctx context.Context, input RecordInteractionInput) (*vo.InteractionOutcome, error) {
	if input.UserID == uuid.Nil || input.ContentID == uuid.Nil {
		return nil, errors.BadRequest(ReasonInvalidArgument, "user_id and content_id are required")
	}
	if !input.Kind.Valid() {
		return nil, errors.BadRequest(ReasonInvalidArgument, fmt.Sprintf("unsupported interaction kind %q", input.Kind))
	}

	info, err := uc.content.Lookup(ctx, nil, input.ContentID)
	if err != nil {
		return nil, uc.wrapTransient(ctx, "lookup content", input, err)
	}
	if info == nil {
		return nil, ErrContentNotFound
	}

	qualified := uc.policy.Qualifies(info.ContentType, input.Kind, input.Signal)
	signal := normalizeSignal(input.Signal)

	var result recordResult
	err = uc.withRetry(ctx, func() error {
		return uc.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
			res, txErr := uc.recordInTx(txCtx, sess, input, signal, qualified)
			if txErr != nil {
				return txErr
			}
			result = *res
			return nil
		})
	})
	if err != nil {
		return nil, uc.wrapTransient(ctx, "record interaction", input, err)
	}

	if result.newlyCounted {
		uc.afterIncrement(ctx, input, info.ContentType, result.stats)
	}

	return vo.NewInteractionOutcome(input.ContentID, input.Kind, result.stats.Counter(metricFor(input.Kind)), result.qualified, result.newlyCounted), nil
}

// recordInTx 执行账本算法的事务内部分。
func (uc *InteractionUsecase) recordInTx(ctx context.Context, sess txmanager.Session, input RecordInteractionInput, signal Signal, qualified bool) (*recordResult, error) {
	record, err := uc.repo.Find(ctx, sess, input.UserID, input.ContentID, input.Kind)
	if err != nil {
		return nil, err
	}

	if record == nil {
		if !qualified {
			stats, statsErr := uc.stats.Get(ctx, sess, input.ContentID)
			if statsErr != nil {
				return nil, statsErr
			}
			return &recordResult{stats: stats, qualified: false}, nil
		}

		outcome, createErr := uc.repo.CreateFirstQualified(ctx, sess, repositories.CreateInteractionInput{
			UserID:      input.UserID,
			ContentID:   input.ContentID,
			Kind:        input.Kind,
			OccurredAt:  signal.OccurredAt,
			DurationMs:  signal.DurationMs,
			ProgressPct: signal.ProgressPct,
			IsComplete:  signal.IsComplete,
		})
		if createErr != nil {
			return nil, createErr
		}

		switch outcome.Status {
		case repositories.CreateStatusCreated:
			stats, incErr := uc.stats.Increment(ctx, sess, input.ContentID, repositories.DeltaFor(metricFor(input.Kind), 1))
			if incErr != nil {
				return nil, incErr
			}
			return &recordResult{stats: stats, qualified: true, newlyCounted: true}, nil
		case repositories.CreateStatusAlreadyExists:
			// 竞争失败方：对方已计数，本方降级为仅追加样本。
			record = outcome.Record
		default:
			return nil, fmt.Errorf("unexpected create outcome %d", outcome.Status)
		}
	}

	if _, err := uc.repo.AppendSample(ctx, sess, repositories.AppendSampleInput{
		InteractionID: record.InteractionID,
		OccurredAt:    signal.OccurredAt,
		DurationMs:    signal.DurationMs,
		ProgressPct:   signal.ProgressPct,
		IsComplete:    signal.IsComplete,
		Qualified:     qualified,
	}); err != nil {
		return nil, err
	}

	stats, err := uc.stats.Get(ctx, sess, input.ContentID)
	if err != nil {
		return nil, err
	}
	// 记录存在即意味着历史上已有合格信号。
	return &recordResult{stats: stats, qualified: true}, nil
}

// InteractionHistory 返回某用户对某内容某类互动的账本记录与全部样本。
// 样本含不合格信号，供个人分析重算与审计回放使用。
func (uc *InteractionUsecase) InteractionHistory(ctx context.Context, userID, contentID uuid.UUID, kind po.InteractionKind) (*vo.InteractionHistory, error) {
	if userID == uuid.Nil || contentID == uuid.Nil {
		return nil, errors.BadRequest(ReasonInvalidArgument, "user_id and content_id are required")
	}
	if !kind.Valid() {
		return nil, errors.BadRequest(ReasonInvalidArgument, fmt.Sprintf("unsupported interaction kind %q", kind))
	}

	var history vo.InteractionHistory
	err := uc.txManager.WithinReadOnlyTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		record, findErr := uc.repo.Find(txCtx, sess, userID, contentID, kind)
		if findErr != nil {
			return findErr
		}
		if record == nil {
			return ErrInteractionNotFound
		}
		samples, samplesErr := uc.repo.Samples(txCtx, sess, record.InteractionID)
		if samplesErr != nil {
			return samplesErr
		}
		history = vo.InteractionHistory{Record: record, Samples: samples}
		return nil
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, err
		}
		return nil, uc.wrapTransient(ctx, "read interaction history", RecordInteractionInput{UserID: userID, ContentID: contentID, Kind: kind}, err)
	}
	return &history, nil
}

// RemoveInteraction 软删除账本记录：记录退出唯一索引与读路径，样本保留
// 以供审计。聚合计数不在此回退，审核扣减由补偿流程负责；软删除后同键的
// 下一个合格信号将创建新记录。
func (uc *InteractionUsecase) RemoveInteraction(ctx context.Context, userID, contentID uuid.UUID, kind po.InteractionKind) error {
	if userID == uuid.Nil || contentID == uuid.Nil {
		return errors.BadRequest(ReasonInvalidArgument, "user_id and content_id are required")
	}
	if !kind.Valid() {
		return errors.BadRequest(ReasonInvalidArgument, fmt.Sprintf("unsupported interaction kind %q", kind))
	}

	err := uc.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		record, findErr := uc.repo.Find(txCtx, sess, userID, contentID, kind)
		if findErr != nil {
			return findErr
		}
		if record == nil {
			return ErrInteractionNotFound
		}
		return uc.repo.Remove(txCtx, sess, record.InteractionID)
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return err
		}
		return uc.wrapTransient(ctx, "remove interaction", RecordInteractionInput{UserID: userID, ContentID: contentID, Kind: kind}, err)
	}
	return nil
}

// afterIncrement 执行聚合净增后的副作用：缓存失效、实时广播、里程碑检查。
// 三者均不回滚已提交的计数。
func (uc *InteractionUsecase) afterIncrement(ctx context.Context, input RecordInteractionInput, contentType string, stats *po.ContentEngagementStats) {
	if uc.cache != nil {
		uc.cache.DeletePattern(ctx, AggregateKeyPattern(input.ContentID))
	}

	if uc.realtime != nil {
		update := vo.CounterUpdate{
			ContentID: input.ContentID,
			Metric:    string(metricFor(input.Kind)),
			NewCount:  stats.Counter(metricFor(input.Kind)),
			UpdatedAt: time.Now().UTC(),
		}
		if err := uc.realtime.PublishCounter(ctx, update); err != nil {
			uc.log.WithContext(ctx).Warnf("publish counter update failed: content_id=%s err=%v", input.ContentID, err)
		}
	}

	if uc.milestones != nil {
		if _, err := uc.milestones.Evaluate(ctx, contentType, stats); err != nil {
			uc.log.WithContext(ctx).Errorf("milestone evaluation failed: content_id=%s err=%v", input.ContentID, err)
		}
	}
}

// withRetry 以指数退避重试短暂故障，至多 writeRetryAttempts 次。
func (uc *InteractionUsecase) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	wait := writeRetryBaseWait
	for attempt := 1; attempt <= writeRetryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt == writeRetryAttempts {
			break
		}
		uc.log.WithContext(ctx).Warnf("interaction write attempt %d failed, retrying in %s: %v", attempt, wait, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return lastErr
}

// wrapTransient 将底层存储错误统一为对外错误形态。
// 合格信号在重试耗尽后必须显式失败，不允许静默丢弃。
func (uc *InteractionUsecase) wrapTransient(ctx context.Context, op string, input RecordInteractionInput, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		uc.log.WithContext(ctx).Warnf("%s timeout: user_id=%s content_id=%s", op, input.UserID, input.ContentID)
		return errors.GatewayTimeout(ReasonQueryTimeout, "engagement store timeout")
	}
	uc.log.WithContext(ctx).Errorf("%s failed: user_id=%s content_id=%s err=%v", op, input.UserID, input.ContentID, err)
	return errors.ServiceUnavailable(ReasonTransientFailure, "engagement store unavailable").WithCause(fmt.Errorf("%s: %w", op, err))
}

func normalizeSignal(signal Signal) Signal {
	if signal.OccurredAt.IsZero() {
		signal.OccurredAt = time.Now().UTC()
	} else {
		signal.OccurredAt = signal.OccurredAt.UTC()
	}
	if signal.DurationMs < 0 {
		signal.DurationMs = 0
	}
	if signal.ProgressPct < 0 {
		signal.ProgressPct = 0
	}
	if signal.ProgressPct > 100 {
		signal.ProgressPct = 100
	}
	return signal
}

func metricFor(kind po.InteractionKind) po.MetricType {
	switch kind {
	case po.KindView:
		return po.MetricViews
	case po.KindLike:
		return po.MetricLikes
	case po.KindShare:
		return po.MetricShares
	case po.KindComment:
		return po.MetricComments
	case po.KindDownload:
		return po.MetricDownloads
	default:
		return po.MetricViews
	}
}
