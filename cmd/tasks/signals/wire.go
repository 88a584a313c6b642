//go:build wireinject
// +build wireinject

// Package main 为 signals 任务 CLI 提供 Wire 依赖注入定义。
package main

import (
	"context"

	"github.com/bionicotaku/lingo-services-engagement/internal/clients"
	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/cache"
	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/database"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"
	signalstask "github.com/bionicotaku/lingo-services-engagement/internal/tasks/signals"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireSignalsTask(context.Context, *configloader.Bootstrap, txmanager.Config, log.Logger) (*signalsTaskApp, func(), error) {
	panic(wire.Build(
		configloader.ProvidePostgresConfig,
		configloader.ProvideCacheConfig,
		configloader.ProvideMessagingConfig,
		configloader.ProvideEngagementConfig,
		configloader.PubSubProviderSet,
		database.ProviderSet,
		cache.ProviderSet,
		repositories.ProviderSet,
		clients.ProviderSet,
		provideQualificationPolicy,
		services.DefaultThresholdLadders,
		wire.Struct(new(services.InteractionUsecaseParams), "*"),
		services.NewInteractionUsecase,
		services.NewMilestoneUsecase,
		wire.Bind(new(services.InteractionRepo), new(*repositories.InteractionRepository)),
		wire.Bind(new(services.StatsRepo), new(*repositories.EngagementStatsRepository)),
		wire.Bind(new(services.ContentStore), new(*repositories.ContentRepository)),
		wire.Bind(new(services.MilestoneStore), new(*repositories.MilestoneRepository)),
		wire.Bind(new(services.CacheInvalidator), new(*cache.Client)),
		wire.Bind(new(services.MilestoneEvaluator), new(*services.MilestoneUsecase)),
		signalstask.ProvideRunner,
		newSignalsTaskApp,
	))
}
