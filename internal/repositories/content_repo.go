package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContentRepository 查询 engagement.content_catalog_projection，
// 即 catalog 服务投影到本地的内容元数据只读副本。
type ContentRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewContentRepository 构造仓储。
func NewContentRepository(db *pgxpool.Pool, logger log.Logger) *ContentRepository {
	return &ContentRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// ContentInfo 是内容存在性检查的结果。
type ContentInfo struct {
	ContentID   uuid.UUID
	ContentType string
}

// Lookup 返回内容元信息；内容不存在或已删除时返回 nil。
func (r *ContentRepository) Lookup(ctx context.Context, sess txmanager.Session, contentID uuid.UUID) (*ContentInfo, error) {
	row := r.q(sess).QueryRow(ctx, `
SELECT content_id, content_type
FROM engagement.content_catalog_projection
WHERE content_id = $1 AND NOT is_deleted`, contentID)

	var info ContentInfo
	if err := row.Scan(&info.ContentID, &info.ContentType); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup content: %w", err)
	}
	return &info, nil
}

func (r *ContentRepository) q(sess txmanager.Session) querier {
	if sess != nil && sess.Tx() != nil {
		return sess.Tx()
	}
	return r.db
}
