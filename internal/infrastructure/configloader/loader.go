// Package configloader 负责加载 bootstrap 配置并派生强类型配置片段。
// 配置来源优先级：显式 -conf 参数 > CONF_PATH 环境变量 > 默认 configs 目录；
// 敏感字段（DSN、Redis URL 等）支持环境变量覆盖。
package configloader

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	obswire "github.com/bionicotaku/lingo-utils/observability"
	txconfig "github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/joho/godotenv"
)

const (
	defaultConfPath    = "configs"
	defaultEnvironment = "development"
	defaultServiceName = "engagement"

	envConfPath       = "CONF_PATH"
	envServiceName    = "SERVICE_NAME"
	envServiceVersion = "SERVICE_VERSION"
	envAppEnv         = "APP_ENV"
	envDatabaseURL    = "DATABASE_URL"
	envRedisURL       = "REDIS_URL"
	envPubSubProject  = "PUBSUB_PROJECT_ID"
	envPubSubEmulator = "PUBSUB_EMULATOR_HOST"
)

var envFileNames = []string{".env.local", ".env"}

// Params 包含构造配置 Bundle 所需的运行时输入参数。
type Params struct {
	ConfPath string // 配置文件路径（可为空，使用默认值）
}

// Bootstrap 是配置文件的顶层结构。
type Bootstrap struct {
	Data          DataConfig       `json:"data"`
	Cache         CacheConfig      `json:"cache"`
	Messaging     MessagingConfig  `json:"messaging"`
	Observability ObsFileConfig    `json:"observability"`
	Engagement    EngagementConfig `json:"engagement"`
}

// DataConfig 聚合存储相关配置。
type DataConfig struct {
	Postgres PostgresConfig `json:"postgres"`
}

// PostgresConfig 描述 PostgreSQL 连接池配置。时长字段使用 Go duration 字符串。
type PostgresConfig struct {
	DSN                       string            `json:"dsn"`
	Schema                    string            `json:"schema"`
	MaxOpenConns              int32             `json:"max_open_conns"`
	MinOpenConns              int32             `json:"min_open_conns"`
	MaxConnLifetime           string            `json:"max_conn_lifetime"`
	MaxConnIdleTime           string            `json:"max_conn_idle_time"`
	HealthCheckPeriod         string            `json:"health_check_period"`
	PreparedStatementsEnabled bool              `json:"prepared_statements_enabled"`
	Transaction               TransactionConfig `json:"transaction"`
}

// TransactionConfig 描述 txmanager 的事务缺省行为。
type TransactionConfig struct {
	DefaultIsolation string `json:"default_isolation"`
	DefaultTimeout   string `json:"default_timeout"`
	LockTimeout      string `json:"lock_timeout"`
	MaxRetries       int    `json:"max_retries"`
}

// CacheConfig 描述 Redis 缓存配置。URL 为空表示禁用缓存。
type CacheConfig struct {
	URL          string `json:"url"`
	PingInterval string `json:"ping_interval"`
}

// MessagingConfig 描述 Pub/Sub 通道配置。
type MessagingConfig struct {
	ProjectID        string        `json:"project_id"`
	EmulatorEndpoint string        `json:"emulator_endpoint"`
	LoggingEnabled   *bool         `json:"logging_enabled"`
	MetricsEnabled   *bool         `json:"metrics_enabled"`
	Signals          ChannelConfig `json:"signals"`
	Notifications    ChannelConfig `json:"notifications"`
	Realtime         ChannelConfig `json:"realtime"`
}

// ChannelConfig 标识单个 Pub/Sub 通道。消费端填 SubscriptionID，发布端填 TopicID。
type ChannelConfig struct {
	TopicID        string `json:"topic_id"`
	SubscriptionID string `json:"subscription_id"`
}

// EngagementConfig 聚合互动账本的业务配置。
type EngagementConfig struct {
	// DurationFloorMs 按内容类型给出 view 信号的时长下限（毫秒）。
	DurationFloorMs map[string]int64 `json:"duration_floor_ms"`
	// DefaultDurationFloorMs 是未配置类型的回退下限。
	DefaultDurationFloorMs int64 `json:"default_duration_floor_ms"`
	// ProgressFloorPct 是 view 信号的进度下限（百分比）。
	ProgressFloorPct int32 `json:"progress_floor_pct"`
}

// ObsFileConfig 是可观测性配置的文件侧结构，加载后转换为 observability 包的规范化配置。
type ObsFileConfig struct {
	Tracing ObsTracingConfig `json:"tracing"`
	Metrics ObsMetricsConfig `json:"metrics"`
}

// ObsTracingConfig 描述链路追踪导出配置。
type ObsTracingConfig struct {
	Enabled       bool    `json:"enabled"`
	Exporter      string  `json:"exporter"`
	Endpoint      string  `json:"endpoint"`
	Insecure      bool    `json:"insecure"`
	SamplingRatio float64 `json:"sampling_ratio"`
	Required      bool    `json:"required"`
}

// ObsMetricsConfig 描述指标导出配置。
type ObsMetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Exporter string `json:"exporter"`
	Endpoint string `json:"endpoint"`
	Insecure bool   `json:"insecure"`
	Interval string `json:"interval"`
	Required bool   `json:"required"`
}

// ServiceMetadata 保存服务标识信息，供日志和可观测性组件使用。
type ServiceMetadata struct {
	Name        string
	Version     string
	Environment string
	InstanceID  string
}

// ObservabilityInfo 将服务元信息转换为 observability.ServiceInfo。
func (m ServiceMetadata) ObservabilityInfo() obswire.ServiceInfo {
	return obswire.ServiceInfo{
		Name:        m.Name,
		Version:     m.Version,
		Environment: m.Environment,
	}
}

// Bundle 聚合强类型的配置片段，供下游 Wire 注入使用。
type Bundle struct {
	Bootstrap *Bootstrap
	Service   ServiceMetadata
	ObsConfig obswire.ObservabilityConfig
	TxConfig  txconfig.Config
}

// BuildError 捕获配置构建过程中的上下文错误信息。
type BuildError struct {
	Stage string
	Path  string
	Err   error
}

// Error 实现 error 接口，提供包含上下文的错误信息。
func (e BuildError) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("config %s at %q: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Stage, e.Err)
}

// Unwrap 暴露底层错误，支持 errors.Is/As 链式查询。
func (e BuildError) Unwrap() error {
	return e.Err
}

// Load 从 bootstrap 配置文件构建 Bundle。
//
// 流程：
// 1. 解析配置路径（应用回退规则）并加载 .env 文件
// 2. 用 Kratos config 加载并扫描到 Bootstrap
// 3. 应用环境变量覆盖并校验必填字段
// 4. 推导服务元信息与事务/可观测性配置
func Load(params Params) (*Bundle, error) {
	confPath := ResolveConfPath(params.ConfPath)
	loadEnvFiles(confPath)

	bootstrap, err := loadBootstrap(confPath)
	if err != nil {
		return nil, err
	}

	txCfg, err := toTxManagerConfig(bootstrap.Data.Postgres.Transaction)
	if err != nil {
		return nil, BuildError{Stage: "parse", Path: confPath, Err: err}
	}

	return &Bundle{
		Bootstrap: bootstrap,
		Service:   buildServiceMetadata(),
		ObsConfig: toObservabilityConfig(bootstrap.Observability),
		TxConfig:  txCfg,
	}, nil
}

// ParseConfPath 注册并解析 -conf 命令行参数。
func ParseConfPath(fs *flag.FlagSet, args []string) (string, error) {
	conf := fs.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return *conf, nil
}

// ResolveConfPath 应用回退规则确定要加载的配置目录/文件路径。
// 优先级：显式传入路径 > CONF_PATH 环境变量 > 默认路径。
func ResolveConfPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(envConfPath); env != "" {
		return env
	}
	return defaultConfPath
}

func loadBootstrap(confPath string) (*Bootstrap, error) {
	c := config.New(config.WithSource(file.NewSource(confPath)))
	if err := c.Load(); err != nil {
		return nil, BuildError{Stage: "load", Path: confPath, Err: err}
	}
	defer c.Close()

	var bc Bootstrap
	if err := c.Scan(&bc); err != nil {
		return nil, BuildError{Stage: "scan", Path: confPath, Err: err}
	}
	applyEnvOverrides(&bc)

	if bc.Data.Postgres.DSN == "" {
		return nil, BuildError{Stage: "validate", Path: confPath, Err: fmt.Errorf("data.postgres.dsn is required (set DATABASE_URL)")}
	}
	return &bc, nil
}

// applyEnvOverrides 应用环境变量覆盖配置文件中的特定字段。
// 环境变量为空时不覆盖，保留配置文件原值。
func applyEnvOverrides(bc *Bootstrap) {
	if bc == nil {
		return
	}
	if dsn := os.Getenv(envDatabaseURL); dsn != "" {
		bc.Data.Postgres.DSN = dsn
	}
	if url := os.Getenv(envRedisURL); url != "" {
		bc.Cache.URL = url
	}
	if project := os.Getenv(envPubSubProject); project != "" {
		bc.Messaging.ProjectID = project
	}
	if endpoint := os.Getenv(envPubSubEmulator); endpoint != "" {
		bc.Messaging.EmulatorEndpoint = endpoint
	}
}

// buildServiceMetadata 构建服务元信息，来源优先级：环境变量 > 默认值。
func buildServiceMetadata() ServiceMetadata {
	name := os.Getenv(envServiceName)
	if name == "" {
		name = defaultServiceName
	}
	version := os.Getenv(envServiceVersion)
	if version == "" {
		version = "dev"
	}
	env := os.Getenv(envAppEnv)
	if env == "" {
		env = defaultEnvironment
	}
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	return ServiceMetadata{
		Name:        name,
		Version:     version,
		Environment: env,
		InstanceID:  host,
	}
}

// loadEnvFiles best-effort 加载配置相关的 .env 文件，失败时忽略以保持幂等。
func loadEnvFiles(confPath string) {
	files := envFileCandidates(confPath)
	if len(files) == 0 {
		return
	}
	_ = godotenv.Load(files...)
}

// envFileCandidates 返回存在的 .env 文件路径，按 confPath 目录、工作目录的顺序去重。
func envFileCandidates(confPath string) []string {
	dirs := orderedDirs(confPath)
	seen := make(map[string]struct{})
	var files []string
	for _, dir := range dirs {
		for _, name := range envFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			if _, ok := seen[candidate]; ok {
				continue
			}
			files = append(files, candidate)
			seen[candidate] = struct{}{}
		}
	}
	return files
}

func orderedDirs(confPath string) []string {
	var dirs []string
	appendUnique := func(path string) {
		if path == "" {
			return
		}
		clean := filepath.Clean(path)
		for _, existing := range dirs {
			if existing == clean {
				return
			}
		}
		dirs = append(dirs, clean)
	}

	if confPath != "" {
		if info, err := os.Stat(confPath); err == nil {
			if info.IsDir() {
				appendUnique(confPath)
			} else {
				appendUnique(filepath.Dir(confPath))
			}
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		appendUnique(cwd)
	}
	return dirs
}

// toObservabilityConfig 将文件侧可观测性配置转换为 observability 包的规范化结构。
func toObservabilityConfig(src ObsFileConfig) obswire.ObservabilityConfig {
	cfg := obswire.ObservabilityConfig{}
	if src.Tracing.Enabled {
		cfg.Tracing = &obswire.TracingConfig{
			Enabled:       true,
			Exporter:      src.Tracing.Exporter,
			Endpoint:      src.Tracing.Endpoint,
			Insecure:      src.Tracing.Insecure,
			SamplingRatio: src.Tracing.SamplingRatio,
			Required:      src.Tracing.Required,
		}
	}
	if src.Metrics.Enabled {
		interval, _ := parseDuration(src.Metrics.Interval)
		cfg.Metrics = &obswire.MetricsConfig{
			Enabled:  true,
			Exporter: src.Metrics.Exporter,
			Endpoint: src.Metrics.Endpoint,
			Insecure: src.Metrics.Insecure,
			Interval: interval,
			Required: src.Metrics.Required,
		}
	}
	return cfg
}

func toTxManagerConfig(tx TransactionConfig) (txconfig.Config, error) {
	cfg := txconfig.Config{
		DefaultIsolation: tx.DefaultIsolation,
		MaxRetries:       tx.MaxRetries,
	}
	var err error
	if cfg.DefaultTimeout, err = parseDuration(tx.DefaultTimeout); err != nil {
		return cfg, fmt.Errorf("data.postgres.transaction.default_timeout: %w", err)
	}
	if cfg.LockTimeout, err = parseDuration(tx.LockTimeout); err != nil {
		return cfg, fmt.Errorf("data.postgres.transaction.lock_timeout: %w", err)
	}
	return cfg, nil
}

// parseDuration 解析 Go duration 字符串，空串视为 0。
func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}
