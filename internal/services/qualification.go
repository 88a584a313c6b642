package services

import (
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
)

// Signal 表示客户端上报的一次互动信号。
// 同一用户可多次上报，时长/进度/完成度可乱序到达。
type Signal struct {
	OccurredAt  time.Time
	DurationMs  int64
	ProgressPct int32
	IsComplete  bool
}

// QualificationPolicy 定义信号的合格线。
// view 信号需满足完成标记、或内容类别对应的时长下限、或进度下限；
// 其余互动类型（like/share/download/comment）本身即为确定性动作，无条件合格。
type QualificationPolicy struct {
	// DurationFloorMs 按内容类型给出时长下限（毫秒）。
	DurationFloorMs map[string]int64
	// DefaultDurationFloorMs 在内容类型未配置时兜底。
	DefaultDurationFloorMs int64
	// ProgressFloorPct 是进度百分比下限。
	ProgressFloorPct int32
}

// DefaultQualificationPolicy 返回生产默认合格线。
func DefaultQualificationPolicy() QualificationPolicy {
	return QualificationPolicy{
		DurationFloorMs: map[string]int64{
			"video":   3000,
			"audio":   3000,
			"article": 5000,
		},
		DefaultDurationFloorMs: 3000,
		ProgressFloorPct:       25,
	}
}

// Qualifies 判断信号是否跨过合格线。
func (p QualificationPolicy) Qualifies(contentType string, kind po.InteractionKind, signal Signal) bool {
	if kind != po.KindView {
		return true
	}
	if signal.IsComplete {
		return true
	}
	floor, ok := p.DurationFloorMs[contentType]
	if !ok {
		floor = p.DefaultDurationFloorMs
	}
	if floor > 0 && signal.DurationMs >= floor {
		return true
	}
	return p.ProgressFloorPct > 0 && signal.ProgressPct >= p.ProgressFloorPct
}
