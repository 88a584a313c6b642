package signals

import (
	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/go-kratos/kratos/v2/log"
)

// ProvideRunner 装配互动信号 Runner。订阅未配置时返回 nil。
func ProvideRunner(uc *services.InteractionUsecase, sub configloader.SignalsSubscriber, logger log.Logger) *Runner {
	realSub := gcpubsub.Subscriber(sub)
	if uc == nil || realSub == nil || logger == nil {
		return nil
	}
	runner, err := NewRunner(RunnerParams{
		Subscriber: realSub,
		Recorder:   uc,
		Logger:     logger,
	})
	if err != nil {
		log.NewHelper(logger).Errorw("msg", "init signals runner failed", "error", err)
		return nil
	}
	return runner
}
