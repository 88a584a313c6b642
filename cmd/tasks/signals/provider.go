package main

import (
	"fmt"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"
	signalstask "github.com/bionicotaku/lingo-services-engagement/internal/tasks/signals"

	"github.com/go-kratos/kratos/v2/log"
)

// provideQualificationPolicy 以配置覆盖默认合格线。未配置字段保留默认值。
func provideQualificationPolicy(cfg configloader.EngagementConfig) services.QualificationPolicy {
	policy := services.DefaultQualificationPolicy()
	if len(cfg.DurationFloorMs) > 0 {
		policy.DurationFloorMs = cfg.DurationFloorMs
	}
	if cfg.DefaultDurationFloorMs > 0 {
		policy.DefaultDurationFloorMs = cfg.DefaultDurationFloorMs
	}
	if cfg.ProgressFloorPct > 0 {
		policy.ProgressFloorPct = cfg.ProgressFloorPct
	}
	return policy
}

func newSignalsTaskApp(logger log.Logger, runner *signalstask.Runner) (*signalsTaskApp, error) {
	if runner == nil {
		return &signalsTaskApp{Logger: logger}, nil
	}
	if logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	return &signalsTaskApp{
		Runner: runner,
		Logger: logger,
	}, nil
}
