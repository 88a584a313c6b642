// Package services 承载互动账本、里程碑探测与聚合读取的业务用例。
package services

import (
	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/cache"

	"github.com/google/wire"
)

var (
	_ CacheStore       = (*cache.Client)(nil)
	_ CacheInvalidator = (*cache.Client)(nil)
)

// ProviderSet 暴露 Service 层构造函数供 Wire 依赖注入使用。
// 与 cache.ProviderSet 组合即可满足缓存两侧的接口绑定。
// QualificationPolicy 不在集合内：合格线带配置覆盖，由注入器侧的
// glue 代码提供（见 cmd/tasks/signals/provider.go）。
var ProviderSet = wire.NewSet(
	DefaultThresholdLadders,
	wire.Struct(new(InteractionUsecaseParams), "*"),
	NewInteractionUsecase,
	NewMilestoneUsecase,
	NewEngagementQueryService,
	wire.Bind(new(MilestoneEvaluator), new(*MilestoneUsecase)),
	wire.Bind(new(CacheStore), new(*cache.Client)),
	wire.Bind(new(CacheInvalidator), new(*cache.Client)),
)
