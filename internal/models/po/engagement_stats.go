package po

import (
	"time"

	"github.com/google/uuid"
)

// MetricType 表示聚合计数的指标类型。
type MetricType string

const (
	MetricViews     MetricType = "views"
	MetricLikes     MetricType = "likes"
	MetricShares    MetricType = "shares"
	MetricComments  MetricType = "comments"
	MetricDownloads MetricType = "downloads"
)

// ContentEngagementStats 表示 engagement.content_engagement_stats 记录。
// 计数列只通过原子增量更新，内容审核回滚可能使其下降，但不应低于 0。
type ContentEngagementStats struct {
	ContentID     uuid.UUID
	ViewCount     int64
	LikeCount     int64
	ShareCount    int64
	CommentCount  int64
	DownloadCount int64
	UpdatedAt     time.Time
}

// Counter 按指标类型取当前计数。
func (s *ContentEngagementStats) Counter(metric MetricType) int64 {
	if s == nil {
		return 0
	}
	switch metric {
	case MetricViews:
		return s.ViewCount
	case MetricLikes:
		return s.LikeCount
	case MetricShares:
		return s.ShareCount
	case MetricComments:
		return s.CommentCount
	case MetricDownloads:
		return s.DownloadCount
	default:
		return 0
	}
}
