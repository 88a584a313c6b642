// Package vo 定义视图对象（View Objects），由 Service 层返回给调用方。
package vo

import (
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/google/uuid"
)

// InteractionOutcome 是 RecordInteraction 的返回视图。
type InteractionOutcome struct {
	ContentID        uuid.UUID `json:"content_id"`
	Kind             string    `json:"kind"`
	AggregateCount   int64     `json:"aggregate_count"`
	UserHasQualified bool      `json:"user_has_qualified"`
	// NewlyCounted 表示本次请求使聚合计数净增 1（首个合格信号）。
	NewlyCounted bool `json:"newly_counted"`
}

// NewInteractionOutcome 构造返回视图。
func NewInteractionOutcome(contentID uuid.UUID, kind po.InteractionKind, aggregate int64, qualified, newlyCounted bool) *InteractionOutcome {
	return &InteractionOutcome{
		ContentID:        contentID,
		Kind:             string(kind),
		AggregateCount:   aggregate,
		UserHasQualified: qualified,
		NewlyCounted:     newlyCounted,
	}
}

// InteractionHistory 是单条账本记录及其全部样本的只读视图。
type InteractionHistory struct {
	Record  *po.Interaction        `json:"record"`
	Samples []po.InteractionSample `json:"samples"`
}

// CounterUpdate 是聚合计数变更的实时广播载荷。
type CounterUpdate struct {
	ContentID uuid.UUID `json:"content_id"`
	Metric    string    `json:"metric"`
	NewCount  int64     `json:"new_count"`
	UpdatedAt time.Time `json:"updated_at"`
}
