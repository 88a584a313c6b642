// Package repositories 实现 engagement schema 上的持久化访问。
package repositories

import (
	"context"

	"github.com/google/wire"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier 抽象 pgxpool.Pool 与 pgx.Tx 的公共查询面，
// 使仓储方法既可在事务内（txmanager.Session）也可独立执行。
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProviderSet 暴露 Repository 层的构造函数供 Wire 依赖注入使用。
var ProviderSet = wire.NewSet(
	NewInteractionRepository,
	NewEngagementStatsRepository,
	NewMilestoneRepository,
	NewContentRepository,
)
