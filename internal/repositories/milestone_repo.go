package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MilestoneRepository 维护 engagement.content_milestones。
// 该表是多实例共享的已跨越阈值集合：同一 (content, metric, threshold)
// 只有一个写入者能插入成功，通知只由该写入者发出。
type MilestoneRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewMilestoneRepository 构造仓储。
func NewMilestoneRepository(db *pgxpool.Pool, logger log.Logger) *MilestoneRepository {
	return &MilestoneRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// MarkCrossed 以 check-and-set 语义登记阈值跨越。
// 返回 true 表示本调用完成了登记；false 表示该阈值早已登记过。
func (r *MilestoneRepository) MarkCrossed(ctx context.Context, sess txmanager.Session, contentID uuid.UUID, metric po.MetricType, threshold int64) (bool, error) {
	tag, err := r.q(sess).Exec(ctx, `
INSERT INTO engagement.content_milestones (content_id, metric, threshold)
VALUES ($1, $2, $3)
ON CONFLICT (content_id, metric, threshold) DO NOTHING`,
		contentID, string(metric), threshold)
	if err != nil {
		return false, fmt.Errorf("mark milestone crossed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListCrossed 返回某内容已登记的全部里程碑，按指标、阈值升序。
func (r *MilestoneRepository) ListCrossed(ctx context.Context, sess txmanager.Session, contentID uuid.UUID) ([]po.ContentMilestone, error) {
	rows, err := r.q(sess).Query(ctx, `
SELECT content_id, metric, threshold, crossed_at
FROM engagement.content_milestones
WHERE content_id = $1
ORDER BY metric, threshold`, contentID)
	if err != nil {
		return nil, fmt.Errorf("list crossed milestones: %w", err)
	}
	defer rows.Close()

	var milestones []po.ContentMilestone
	for rows.Next() {
		var m po.ContentMilestone
		var metric string
		var crossedAt time.Time
		if err := rows.Scan(&m.ContentID, &metric, &m.Threshold, &crossedAt); err != nil {
			return nil, fmt.Errorf("scan crossed milestone: %w", err)
		}
		m.Metric = po.MetricType(metric)
		m.CrossedAt = crossedAt.UTC()
		milestones = append(milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crossed milestones: %w", err)
	}
	return milestones, nil
}

func (r *MilestoneRepository) q(sess txmanager.Session) querier {
	if sess != nil && sess.Tx() != nil {
		return sess.Tx()
	}
	return r.db
}
