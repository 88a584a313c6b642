// Package po 定义持久化对象（Persistent Objects），与 engagement schema 的表结构一一对应。
package po

import (
	"time"

	"github.com/google/uuid"
)

// InteractionKind 表示互动类型。
type InteractionKind string

const (
	KindView     InteractionKind = "view"
	KindLike     InteractionKind = "like"
	KindShare    InteractionKind = "share"
	KindDownload InteractionKind = "download"
	KindComment  InteractionKind = "comment"
)

// Valid 判断互动类型是否受支持。
func (k InteractionKind) Valid() bool {
	switch k {
	case KindView, KindLike, KindShare, KindDownload, KindComment:
		return true
	default:
		return false
	}
}

// Interaction 表示 engagement.interactions 记录。
// 每个 (user_id, content_id, kind) 至多存在一条未删除记录，
// 该唯一约束即首个合格信号竞争的裁决点。
type Interaction struct {
	InteractionID     uuid.UUID
	UserID            uuid.UUID
	ContentID         uuid.UUID
	Kind              InteractionKind
	QualifiedCount    int64
	SampleCount       int64
	MaxDurationMs     int64
	MaxProgressPct    int32
	IsComplete        bool
	LastInteractionAt time.Time
	IsRemoved         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// InteractionSample 表示 engagement.interaction_samples 的追加日志行。
// 不合格信号同样入表，供个人分析重算使用。
type InteractionSample struct {
	SampleID      int64
	InteractionID uuid.UUID
	OccurredAt    time.Time
	DurationMs    int64
	ProgressPct   int32
	IsComplete    bool
}
