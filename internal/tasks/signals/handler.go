package signals

import (
	"context"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	kratoserrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// interactionRecorder 定义信号处理所需的账本行为。
type interactionRecorder interface {
	RecordInteraction(ctx context.Context, input services.RecordInteractionInput) (*vo.InteractionOutcome, error)
}

var _ interactionRecorder = (*services.InteractionUsecase)(nil)

// EventHandler 将互动信号事件转交互动账本。
type EventHandler struct {
	recorder interactionRecorder
	log      *log.Helper
	metrics  *signalMetrics
	clock    func() time.Time
}

// NewEventHandler 构造互动信号处理器。
func NewEventHandler(recorder interactionRecorder, logger log.Logger, metrics *signalMetrics) *EventHandler {
	return &EventHandler{
		recorder: recorder,
		log:      log.NewHelper(logger),
		metrics:  metrics,
		clock:    time.Now,
	}
}

// Handle 处理一条已解码的信号事件。
//
// 返回 nil 表示消息可确认；仅瞬态失败返回错误触发重投。
// 账本写入天然幂等，重投不会造成重复计数。
func (h *EventHandler) Handle(ctx context.Context, evt *Event) error {
	if evt == nil {
		return nil
	}

	userID, err := uuid.Parse(evt.UserID)
	if err != nil {
		h.log.WithContext(ctx).Warnf("signals: invalid user_id %q, dropping event", evt.UserID)
		h.metrics.recordSkip(ctx, "invalid_user_id")
		return nil
	}
	contentID, err := uuid.Parse(evt.ContentID)
	if err != nil {
		h.log.WithContext(ctx).Warnf("signals: invalid content_id %q, dropping event", evt.ContentID)
		h.metrics.recordSkip(ctx, "invalid_content_id")
		return nil
	}
	kind := po.InteractionKind(strings.ToLower(evt.Kind))
	if !kind.Valid() {
		h.log.WithContext(ctx).Warnf("signals: unsupported kind %q, dropping event", evt.Kind)
		h.metrics.recordSkip(ctx, "invalid_kind")
		return nil
	}

	outcome, err := h.recorder.RecordInteraction(ctx, services.RecordInteractionInput{
		UserID:    userID,
		ContentID: contentID,
		Kind:      kind,
		Signal: services.Signal{
			OccurredAt:  evt.OccurredAt,
			DurationMs:  evt.DurationMs,
			ProgressPct: evt.ProgressPct,
			IsComplete:  evt.IsComplete,
		},
	})
	if err != nil {
		switch {
		case kratoserrors.IsNotFound(err):
			// 内容不存在或已删除，重投无法恢复，丢弃。
			h.log.WithContext(ctx).Warnf("signals: content %s not found, dropping event", contentID)
			h.metrics.recordSkip(ctx, "content_not_found")
			return nil
		case kratoserrors.IsBadRequest(err):
			h.log.WithContext(ctx).Warnf("signals: rejected event user=%s content=%s kind=%s: %v", userID, contentID, kind, err)
			h.metrics.recordSkip(ctx, "invalid_argument")
			return nil
		default:
			h.metrics.recordFailure(ctx, string(kind))
			return err
		}
	}

	h.metrics.recordSuccess(ctx, string(kind), evt.OccurredAt, h.clock())
	if outcome != nil && outcome.NewlyCounted {
		h.log.WithContext(ctx).Debugf("signals: counted user=%s content=%s kind=%s total=%d", userID, contentID, kind, outcome.AggregateCount)
	}
	return nil
}
