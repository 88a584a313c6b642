package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EngagementStatsRepository 维护 engagement.content_engagement_stats 聚合计数。
type EngagementStatsRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewEngagementStatsRepository 构造仓储。
func NewEngagementStatsRepository(db *pgxpool.Pool, logger log.Logger) *EngagementStatsRepository {
	return &EngagementStatsRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// StatsDelta 表示需要应用的计数增量。审核回滚可为负，落库后不低于 0。
type StatsDelta struct {
	ViewDelta     int64
	LikeDelta     int64
	ShareDelta    int64
	CommentDelta  int64
	DownloadDelta int64
}

// DeltaFor 构造单指标增量。
func DeltaFor(metric po.MetricType, delta int64) StatsDelta {
	switch metric {
	case po.MetricViews:
		return StatsDelta{ViewDelta: delta}
	case po.MetricLikes:
		return StatsDelta{LikeDelta: delta}
	case po.MetricShares:
		return StatsDelta{ShareDelta: delta}
	case po.MetricComments:
		return StatsDelta{CommentDelta: delta}
	case po.MetricDownloads:
		return StatsDelta{DownloadDelta: delta}
	default:
		return StatsDelta{}
	}
}

// Increment 以单条原子语句应用增量并返回最新聚合。
// 调用方从不读改写计数；丢失更新由数据库侧的表达式更新排除。
func (r *EngagementStatsRepository) Increment(ctx context.Context, sess txmanager.Session, contentID uuid.UUID, delta StatsDelta) (*po.ContentEngagementStats, error) {
	row := r.q(sess).QueryRow(ctx, `
INSERT INTO engagement.content_engagement_stats AS s (
    content_id, view_count, like_count, share_count, comment_count, download_count
) VALUES ($1, GREATEST(0, $2), GREATEST(0, $3), GREATEST(0, $4), GREATEST(0, $5), GREATEST(0, $6))
ON CONFLICT (content_id) DO UPDATE SET
    view_count     = GREATEST(0, s.view_count + $2),
    like_count     = GREATEST(0, s.like_count + $3),
    share_count    = GREATEST(0, s.share_count + $4),
    comment_count  = GREATEST(0, s.comment_count + $5),
    download_count = GREATEST(0, s.download_count + $6),
    updated_at     = now()
RETURNING content_id, view_count, like_count, share_count, comment_count, download_count, updated_at`,
		contentID, delta.ViewDelta, delta.LikeDelta, delta.ShareDelta, delta.CommentDelta, delta.DownloadDelta)

	stats, err := scanStats(row)
	if err != nil {
		return nil, fmt.Errorf("increment engagement stats: %w", err)
	}
	return stats, nil
}

// Get 返回指定内容的当前聚合；无记录时返回全零聚合。
func (r *EngagementStatsRepository) Get(ctx context.Context, sess txmanager.Session, contentID uuid.UUID) (*po.ContentEngagementStats, error) {
	row := r.q(sess).QueryRow(ctx, `
SELECT content_id, view_count, like_count, share_count, comment_count, download_count, updated_at
FROM engagement.content_engagement_stats
WHERE content_id = $1`, contentID)

	stats, err := scanStats(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &po.ContentEngagementStats{ContentID: contentID}, nil
		}
		return nil, fmt.Errorf("get engagement stats: %w", err)
	}
	return stats, nil
}

// ListContentIDs 以键集分页返回有聚合记录的内容 ID，按 content_id 升序。
// afterID 传 uuid.Nil 表示从头开始。
func (r *EngagementStatsRepository) ListContentIDs(ctx context.Context, sess txmanager.Session, afterID uuid.UUID, limit int32) ([]uuid.UUID, error) {
	rows, err := r.q(sess).Query(ctx, `
SELECT content_id
FROM engagement.content_engagement_stats
WHERE content_id > $1
ORDER BY content_id
LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list engagement stats content ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan content id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content ids: %w", err)
	}
	return ids, nil
}

func (r *EngagementStatsRepository) q(sess txmanager.Session) querier {
	if sess != nil && sess.Tx() != nil {
		return sess.Tx()
	}
	return r.db
}

func scanStats(row pgx.Row) (*po.ContentEngagementStats, error) {
	var stats po.ContentEngagementStats
	var updatedAt time.Time
	if err := row.Scan(
		&stats.ContentID, &stats.ViewCount, &stats.LikeCount,
		&stats.ShareCount, &stats.CommentCount, &stats.DownloadCount, &updatedAt,
	); err != nil {
		return nil, err
	}
	stats.UpdatedAt = updatedAt.UTC()
	return &stats, nil
}
