// Package mappers 提供 pgtype 与领域类型之间的转换辅助。
package mappers

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ToPgTimestamptz 将 *time.Time 转为 pgtype.Timestamptz，nil 映射为 NULL。
func ToPgTimestamptz(ts *time.Time) pgtype.Timestamptz {
	if ts == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: ts.UTC(), Valid: true}
}
