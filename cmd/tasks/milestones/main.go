// Package main 提供里程碑补偿扫描的一次性 CLI 入口。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"
	loginfra "github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/logger"
	milestonestask "github.com/bionicotaku/lingo-services-engagement/internal/tasks/milestones"

	"github.com/bionicotaku/lingo-utils/observability"
	"github.com/go-kratos/kratos/v2/log"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name string
	// Version is the version of the compiled software.
	Version string
)

type milestonesTaskApp struct {
	Sweeper *milestonestask.Sweeper
	Logger  log.Logger
}

func newMilestonesTaskApp(logger log.Logger, sweeper *milestonestask.Sweeper) (*milestonesTaskApp, error) {
	if sweeper == nil {
		return &milestonesTaskApp{Logger: logger}, nil
	}
	if logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	return &milestonesTaskApp{
		Sweeper: sweeper,
		Logger:  logger,
	}, nil
}

func main() {
	ctx := context.Background()

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	confPath, err := configloader.ParseConfPath(fs, os.Args[1:])
	if err != nil {
		panic(err)
	}

	bundle, err := configloader.Load(configloader.Params{ConfPath: confPath})
	if err != nil {
		panic(err)
	}

	loggr, err := loginfra.NewLogger(configloader.ProvideLoggerConfig(bundle.Service))
	if err != nil {
		panic(err)
	}
	helper := log.NewHelper(loggr)

	obsShutdown, err := observability.Init(ctx, bundle.ObsConfig,
		observability.WithLogger(loggr),
		observability.WithServiceName(bundle.Service.Name),
		observability.WithServiceVersion(bundle.Service.Version),
		observability.WithEnvironment(bundle.Service.Environment),
	)
	if err != nil {
		panic(err)
	}
	defer func() {
		if obsShutdown == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obsShutdown(shutdownCtx); err != nil {
			helper.Warnf("shutdown observability: %v", err)
		}
	}()

	app, cleanup, err := wireMilestonesTask(ctx, bundle.Bootstrap, loggr)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	if app.Sweeper == nil {
		helper.Warn("milestone sweeper disabled (missing dependencies)")
		return
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	helper.Info("starting milestone sweep")
	crossed, err := app.Sweeper.Run(runCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		helper.Errorf("milestone sweep failed: %v", err)
		os.Exit(1)
	}
	helper.Infof("milestone sweep done: newly_crossed=%d", crossed)
}
