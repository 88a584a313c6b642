// Package clients 包含调用外部协作方的客户端门面（Façade），封装 Pub/Sub 发布细节。
// 实现 Service 层定义的协作方接口，提供业务级别的调用抽象。
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// EventTypeMilestoneCrossed 是里程碑通知事件的类型标识。
const EventTypeMilestoneCrossed = "engagement.milestone.crossed"

// milestoneNotification 是发布到通知通道的事件载荷。
type milestoneNotification struct {
	ContentID   string    `json:"content_id"`
	ContentType string    `json:"content_type"`
	Metric      string    `json:"metric"`
	Threshold   int64     `json:"threshold"`
	CrossedAt   time.Time `json:"crossed_at"`
	Version     string    `json:"version"`
}

// milestoneNotifier 是 services.NotificationDispatcher 的实现，向通知通道发布里程碑事件。
type milestoneNotifier struct {
	publisher gcpubsub.Publisher
	log       *log.Helper
}

// NewMilestoneNotifier 构造里程碑通知客户端。
// 支持优雅降级：publisher 为 nil（未配置通知主题）时返回无操作实现。
func NewMilestoneNotifier(publisher configloader.NotifyPublisher, logger log.Logger) services.NotificationDispatcher {
	helper := log.NewHelper(logger)
	if publisher == nil {
		helper.Warn("no notification topic configured; milestone notifier disabled")
		return &milestoneNotifier{log: helper}
	}
	return &milestoneNotifier{
		publisher: gcpubsub.Publisher(publisher),
		log:       helper,
	}
}

// Dispatch 发布一条里程碑通知。
// 客户端未初始化时记录警告并返回 nil，允许服务优雅降级。
func (n *milestoneNotifier) Dispatch(ctx context.Context, contentID uuid.UUID, contentType string, metric po.MetricType, threshold int64) error {
	if n.publisher == nil {
		n.log.WithContext(ctx).Warn("milestone notifier not initialized, dropping notification")
		return nil
	}

	payload, err := json.Marshal(milestoneNotification{
		ContentID:   contentID.String(),
		ContentType: contentType,
		Metric:      string(metric),
		Threshold:   threshold,
		CrossedAt:   time.Now().UTC(),
		Version:     "v1",
	})
	if err != nil {
		return fmt.Errorf("marshal milestone notification: %w", err)
	}

	msgID, err := n.publisher.Publish(ctx, gcpubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type": EventTypeMilestoneCrossed,
			"content_id": contentID.String(),
			"metric":     string(metric),
		},
	})
	if err != nil {
		return fmt.Errorf("publish milestone notification: %w", err)
	}
	n.log.WithContext(ctx).Debugf("milestone notification published: content_id=%s metric=%s threshold=%d message_id=%s", contentID, metric, threshold, msgID)
	return nil
}
