package configloader

import (
	"context"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/cache"
	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/logger"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	obswire "github.com/bionicotaku/lingo-utils/observability"
	txconfig "github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet exposes configuration-derived dependencies for Wire graphs.
var ProviderSet = wire.NewSet(
	Load,
	ProvideBootstrap,
	ProvideServiceMetadata,
	ProvidePostgresConfig,
	ProvideCacheConfig,
	ProvideMessagingConfig,
	ProvideEngagementConfig,
	ProvideObservabilityConfig,
	ProvideTxConfig,
	ProvideLoggerConfig,
)

// PubSubProviderSet wires the named Pub/Sub channels used by tasks and clients.
var PubSubProviderSet = wire.NewSet(
	ProvideSignalsSubscriber,
	ProvideNotifyPublisher,
	ProvideRealtimePublisher,
)

// ProvideBootstrap exposes the strongly typed bootstrap configuration.
func ProvideBootstrap(b *Bundle) *Bootstrap {
	if b == nil {
		return nil
	}
	return b.Bootstrap
}

// ProvideServiceMetadata returns the resolved ServiceMetadata from the bundle.
func ProvideServiceMetadata(b *Bundle) ServiceMetadata {
	if b == nil {
		return ServiceMetadata{}
	}
	return b.Service
}

// ProvidePostgresConfig returns the postgres section of the bootstrap configuration.
func ProvidePostgresConfig(bc *Bootstrap) PostgresConfig {
	if bc == nil {
		return PostgresConfig{}
	}
	return bc.Data.Postgres
}

// ProvideCacheConfig converts the cache section into the cache client config.
func ProvideCacheConfig(bc *Bootstrap) cache.Config {
	if bc == nil {
		return cache.Config{}
	}
	interval, _ := parseDuration(bc.Cache.PingInterval)
	return cache.Config{
		URL:          bc.Cache.URL,
		PingInterval: interval,
	}
}

// ProvideMessagingConfig returns the messaging section of the bootstrap configuration.
func ProvideMessagingConfig(bc *Bootstrap) MessagingConfig {
	if bc == nil {
		return MessagingConfig{}
	}
	return bc.Messaging
}

// ProvideEngagementConfig returns the engagement section of the bootstrap configuration.
func ProvideEngagementConfig(bc *Bootstrap) EngagementConfig {
	if bc == nil {
		return EngagementConfig{}
	}
	return bc.Engagement
}

// ProvideObservabilityConfig exposes the normalized observability configuration.
func ProvideObservabilityConfig(b *Bundle) obswire.ObservabilityConfig {
	if b == nil {
		return obswire.ObservabilityConfig{}
	}
	return b.ObsConfig
}

// ProvideTxConfig exposes the transaction manager configuration.
func ProvideTxConfig(b *Bundle) txconfig.Config {
	if b == nil {
		return txconfig.Config{}
	}
	return b.TxConfig
}

// ProvideLoggerConfig derives the structured logger configuration from service metadata.
func ProvideLoggerConfig(meta ServiceMetadata) logger.Config {
	return logger.Config{
		Service: meta.Name,
		Version: meta.Version,
		HostID:  meta.InstanceID,
		Env:     meta.Environment,
	}
}

// SignalsSubscriber 是互动信号消费通道的命名订阅者。
type SignalsSubscriber gcpubsub.Subscriber

// NotifyPublisher 是里程碑通知发布通道的命名发布者。
type NotifyPublisher gcpubsub.Publisher

// RealtimePublisher 是计数实时广播通道的命名发布者。
type RealtimePublisher gcpubsub.Publisher

// ProvideSignalsSubscriber 装配互动信号订阅组件。未配置订阅时返回 nil。
func ProvideSignalsSubscriber(ctx context.Context, cfg MessagingConfig, logger log.Logger) (SignalsSubscriber, func(), error) {
	if cfg.Signals.SubscriptionID == "" {
		return nil, func() {}, nil
	}
	component, cleanup, err := gcpubsub.NewComponent(ctx, gcpubsub.Config{
		ProjectID:        cfg.ProjectID,
		TopicID:          cfg.Signals.TopicID,
		SubscriptionID:   cfg.Signals.SubscriptionID,
		EnableLogging:    cfg.LoggingEnabled,
		EnableMetrics:    cfg.MetricsEnabled,
		EmulatorEndpoint: cfg.EmulatorEndpoint,
	}, gcpubsub.Dependencies{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return SignalsSubscriber(gcpubsub.ProvideSubscriber(component)), cleanup, nil
}

// ProvideNotifyPublisher 装配里程碑通知发布组件。未配置主题时返回 nil。
func ProvideNotifyPublisher(ctx context.Context, cfg MessagingConfig, logger log.Logger) (NotifyPublisher, func(), error) {
	if cfg.Notifications.TopicID == "" {
		return nil, func() {}, nil
	}
	component, cleanup, err := gcpubsub.NewComponent(ctx, gcpubsub.Config{
		ProjectID:        cfg.ProjectID,
		TopicID:          cfg.Notifications.TopicID,
		EnableLogging:    cfg.LoggingEnabled,
		EnableMetrics:    cfg.MetricsEnabled,
		EmulatorEndpoint: cfg.EmulatorEndpoint,
	}, gcpubsub.Dependencies{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return NotifyPublisher(gcpubsub.ProvidePublisher(component)), cleanup, nil
}

// ProvideRealtimePublisher 装配计数实时广播发布组件。未配置主题时返回 nil。
func ProvideRealtimePublisher(ctx context.Context, cfg MessagingConfig, logger log.Logger) (RealtimePublisher, func(), error) {
	if cfg.Realtime.TopicID == "" {
		return nil, func() {}, nil
	}
	component, cleanup, err := gcpubsub.NewComponent(ctx, gcpubsub.Config{
		ProjectID:        cfg.ProjectID,
		TopicID:          cfg.Realtime.TopicID,
		EnableLogging:    cfg.LoggingEnabled,
		EnableMetrics:    cfg.MetricsEnabled,
		EmulatorEndpoint: cfg.EmulatorEndpoint,
	}, gcpubsub.Dependencies{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return RealtimePublisher(gcpubsub.ProvidePublisher(component)), cleanup, nil
}
