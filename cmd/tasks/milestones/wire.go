//go:build wireinject
// +build wireinject

// Package main 为 milestones 补偿扫描 CLI 提供 Wire 依赖注入定义。
package main

import (
	"context"

	"github.com/bionicotaku/lingo-services-engagement/internal/clients"
	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/database"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"
	milestonestask "github.com/bionicotaku/lingo-services-engagement/internal/tasks/milestones"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireMilestonesTask(context.Context, *configloader.Bootstrap, log.Logger) (*milestonesTaskApp, func(), error) {
	panic(wire.Build(
		configloader.ProvidePostgresConfig,
		configloader.ProvideMessagingConfig,
		configloader.ProvideNotifyPublisher,
		database.NewPgxPool,
		repositories.NewEngagementStatsRepository,
		repositories.NewMilestoneRepository,
		repositories.NewContentRepository,
		clients.NewMilestoneNotifier,
		services.DefaultThresholdLadders,
		services.NewMilestoneUsecase,
		wire.Bind(new(services.StatsRepo), new(*repositories.EngagementStatsRepository)),
		wire.Bind(new(services.ContentStore), new(*repositories.ContentRepository)),
		wire.Bind(new(services.MilestoneStore), new(*repositories.MilestoneRepository)),
		milestonestask.ProvideSweeper,
		newMilestonesTaskApp,
	))
}
