package signals

import (
	"context"
	"fmt"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
)

// Runner 封装互动信号事件消费循环。
type Runner struct {
	subscriber gcpubsub.Subscriber
	handler    *EventHandler
	decoder    *eventDecoder
	metrics    *signalMetrics
	logger     *log.Helper
}

// RunnerParams 注入 Runner 所需依赖。
type RunnerParams struct {
	Subscriber gcpubsub.Subscriber
	Recorder   interactionRecorder
	Logger     log.Logger
}

// NewRunner 构造互动信号 Runner。
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Subscriber == nil {
		return nil, fmt.Errorf("signals: subscriber is required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("signals: interaction recorder is required")
	}
	helper := log.NewHelper(params.Logger)
	meter := otel.GetMeterProvider().Meter("lingo-services-engagement/signals")
	metrics := newSignalMetrics(meter, helper)
	return &Runner{
		subscriber: params.Subscriber,
		handler:    NewEventHandler(params.Recorder, params.Logger, metrics),
		decoder:    newEventDecoder(),
		metrics:    metrics,
		logger:     helper,
	}, nil
}

// Run 启动消费循环，直到 context 取消。
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.subscriber == nil {
		return nil
	}
	return r.subscriber.Receive(ctx, r.processMessage)
}

func (r *Runner) processMessage(ctx context.Context, msg *gcpubsub.Message) error {
	if msg == nil {
		return nil
	}
	evt, err := r.decoder.Decode(msg.Data)
	if err != nil {
		// 无法解码的消息重投也无法恢复，记录后确认。
		r.logger.WithContext(ctx).Warnw("msg", "decode interaction signal failed", "error", err)
		r.metrics.recordSkip(ctx, "malformed")
		return nil
	}
	return r.handler.Handle(ctx, evt)
}
