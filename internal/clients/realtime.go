package clients

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/go-kratos/kratos/v2/log"
)

// EventTypeCounterUpdated 是计数实时广播事件的类型标识。
const EventTypeCounterUpdated = "engagement.counter.updated"

// counterFanout 是 services.RealtimePublisher 的实现，向实时通道广播计数更新。
type counterFanout struct {
	publisher gcpubsub.Publisher
	log       *log.Helper
}

// NewCounterFanout 构造计数实时广播客户端。
// 支持优雅降级：publisher 为 nil（未配置实时主题）时返回无操作实现。
func NewCounterFanout(publisher configloader.RealtimePublisher, logger log.Logger) services.RealtimePublisher {
	helper := log.NewHelper(logger)
	if publisher == nil {
		helper.Warn("no realtime topic configured; counter fanout disabled")
		return &counterFanout{log: helper}
	}
	return &counterFanout{
		publisher: gcpubsub.Publisher(publisher),
		log:       helper,
	}
}

// PublishCounter 广播一条计数更新。
// 客户端未初始化时静默返回 nil：实时广播是尽力而为的附带效应。
func (f *counterFanout) PublishCounter(ctx context.Context, update vo.CounterUpdate) error {
	if f.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal counter update: %w", err)
	}

	if _, err := f.publisher.Publish(ctx, gcpubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type": EventTypeCounterUpdated,
			"content_id": update.ContentID.String(),
			"metric":     string(update.Metric),
		},
	}); err != nil {
		return fmt.Errorf("publish counter update: %w", err)
	}
	return nil
}
