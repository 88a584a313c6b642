package clients

import "github.com/google/wire"

// ProviderSet 暴露客户端门面构造器供 Wire 依赖注入使用。
var ProviderSet = wire.NewSet(
	NewMilestoneNotifier,
	NewCounterFanout,
)
