package vo

import (
	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/google/uuid"
)

// MilestoneCrossing 表示一次新跨越的里程碑。
// 同一 (content, metric, threshold) 在里程碑状态表中只会产生一次。
type MilestoneCrossing struct {
	ContentID uuid.UUID     `json:"content_id"`
	Metric    po.MetricType `json:"metric"`
	Threshold int64         `json:"threshold"`
	Value     int64         `json:"value"`
}
