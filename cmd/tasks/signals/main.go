// Package main 提供互动信号消费 Runner 的独立进程入口。
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/configloader"
	loginfra "github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/logger"
	signalstask "github.com/bionicotaku/lingo-services-engagement/internal/tasks/signals"

	"github.com/bionicotaku/lingo-utils/observability"
	"github.com/go-kratos/kratos/v2/log"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name string
	// Version is the version of the compiled software.
	Version string
)

type signalsTaskApp struct {
	Runner *signalstask.Runner
	Logger log.Logger
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

	app, cleanup, err := wireSignalsTask(ctx, bundle.Bootstrap, bundle.TxConfig, loggr)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	if app.Runner == nil {
		helper.Warn("signals runner disabled (missing messaging.signals.subscription_id configuration)")
		return
	}

	helper.Info("starting interaction signals runner")

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		helper.Errorf("signals runner stopped unexpectedly: %v", err)
		os.Exit(1)
	}

	helper.Info("signals runner stopped")
}
