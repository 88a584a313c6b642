package po

import (
	"time"

	"github.com/google/uuid"
)

// ContentMilestone 表示 engagement.content_milestones 记录。
// 主键 (content_id, metric, threshold)；一旦写入永不删除，
// 即使指标随后回落，该里程碑也视为已跨越。
type ContentMilestone struct {
	ContentID uuid.UUID
	Metric    MetricType
	Threshold int64
	CrossedAt time.Time
}
