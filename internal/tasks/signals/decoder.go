// Package signals 消费客户端互动信号事件并驱动互动账本。
package signals

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventVersion 表示互动信号事件协议的版本常量。
const EventVersion = "v1"

// Event 描述客户端上报的一次互动信号。
type Event struct {
	UserID      string    `json:"user_id"`
	ContentID   string    `json:"content_id"`
	Kind        string    `json:"kind"`
	OccurredAt  time.Time `json:"occurred_at"`
	DurationMs  int64     `json:"duration_ms,omitempty"`
	ProgressPct int32     `json:"progress_pct,omitempty"`
	IsComplete  bool      `json:"is_complete,omitempty"`
	Version     string    `json:"version"`
}

// eventDecoder 解码 JSON 载荷并补足缺省字段。
type eventDecoder struct{}

func newEventDecoder() *eventDecoder {
	return &eventDecoder{}
}

// Decode 将原始消息解码为 Event。
func (d *eventDecoder) Decode(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("signals: decode payload: %w", err)
	}
	normalizeEvent(&evt)
	if evt.UserID == "" || evt.ContentID == "" || evt.Kind == "" {
		return nil, fmt.Errorf("signals: missing required fields user_id/content_id/kind")
	}
	return &evt, nil
}

// normalizeEvent 补足缺省值并确保 OccurredAt/Version 合法。
func normalizeEvent(evt *Event) {
	evt.UserID = strings.TrimSpace(evt.UserID)
	evt.ContentID = strings.TrimSpace(evt.ContentID)
	evt.Kind = strings.ToLower(strings.TrimSpace(evt.Kind))
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	} else {
		evt.OccurredAt = evt.OccurredAt.UTC()
	}
	if evt.DurationMs < 0 {
		evt.DurationMs = 0
	}
	if evt.ProgressPct < 0 {
		evt.ProgressPct = 0
	}
	if evt.ProgressPct > 100 {
		evt.ProgressPct = 100
	}
	if strings.TrimSpace(evt.Version) == "" {
		evt.Version = EventVersion
	}
}
