package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories/mappers"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InteractionRepository 维护 engagement.interactions 与 engagement.interaction_samples。
type InteractionRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewInteractionRepository 构造仓储。
func NewInteractionRepository(db *pgxpool.Pool, logger log.Logger) *InteractionRepository {
	return &InteractionRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// CreateStatus 标记首条记录创建竞争的结果。
type CreateStatus int

const (
	// CreateStatusCreated 表示本调用赢得了创建竞争。
	CreateStatusCreated CreateStatus = iota + 1
	// CreateStatusAlreadyExists 表示并发创建者已先行提交，携带现存记录。
	CreateStatusAlreadyExists
)

// CreateOutcome 是 CreateFirstQualified 的带标签结果。
// 创建竞争的失败在此转换为 AlreadyExists 分支，而非错误。
type CreateOutcome struct {
	Status CreateStatus
	Record *po.Interaction
}

// CreateInteractionInput 描述首个合格信号。
type CreateInteractionInput struct {
	UserID      uuid.UUID
	ContentID   uuid.UUID
	Kind        po.InteractionKind
	OccurredAt  time.Time
	DurationMs  int64
	ProgressPct int32
	IsComplete  bool
}

const interactionColumns = `
    interaction_id, user_id, content_id, kind,
    qualified_count, sample_count, max_duration_ms, max_progress_pct,
    is_complete, last_interaction_at, is_removed, created_at, updated_at`

// Find 返回指定 (user, content, kind) 的未删除记录，不存在时返回 nil。
func (r *InteractionRepository) Find(ctx context.Context, sess txmanager.Session, userID, contentID uuid.UUID, kind po.InteractionKind) (*po.Interaction, error) {
	row := r.q(sess).QueryRow(ctx, `
SELECT`+interactionColumns+`
FROM engagement.interactions
WHERE user_id = $1 AND content_id = $2 AND kind = $3 AND NOT is_removed`,
		userID, contentID, string(kind))

	record, err := scanInteraction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find interaction: %w", err)
	}
	return record, nil
}

// CreateFirstQualified 以首个合格信号创建记录并追加首条样本。
//
// 创建使用 ON CONFLICT DO NOTHING：与并发创建者竞争失败时语句不报错、
// 事务保持可用，零行返回即冲突信号，回读现存记录并返回 AlreadyExists，
// 调用方据此走更新分支。冲突目标与未删除记录上的部分唯一索引一致。
func (r *InteractionRepository) CreateFirstQualified(ctx context.Context, sess txmanager.Session, input CreateInteractionInput) (*CreateOutcome, error) {
	occurredAt := input.OccurredAt.UTC()
	row := r.q(sess).QueryRow(ctx, `
INSERT INTO engagement.interactions (
    interaction_id, user_id, content_id, kind,
    qualified_count, sample_count, max_duration_ms, max_progress_pct,
    is_complete, last_interaction_at
) VALUES ($1, $2, $3, $4, 1, 1, $5, $6, $7, $8)
ON CONFLICT (user_id, content_id, kind) WHERE NOT is_removed DO NOTHING
RETURNING`+interactionColumns,
		uuid.New(), input.UserID, input.ContentID, string(input.Kind),
		input.DurationMs, input.ProgressPct, input.IsComplete,
		mappers.ToPgTimestamptz(&occurredAt))

	record, err := scanInteraction(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("create interaction: %w", err)
		}
		existing, findErr := r.Find(ctx, sess, input.UserID, input.ContentID, input.Kind)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, fmt.Errorf("interaction missing after insert conflict: user=%s content=%s", input.UserID, input.ContentID)
		}
		return &CreateOutcome{Status: CreateStatusAlreadyExists, Record: existing}, nil
	}

	if err := r.insertSample(ctx, sess, record.InteractionID, occurredAt, input.DurationMs, input.ProgressPct, input.IsComplete); err != nil {
		return nil, err
	}
	return &CreateOutcome{Status: CreateStatusCreated, Record: record}, nil
}

// AppendSampleInput 描述一条追加样本。
type AppendSampleInput struct {
	InteractionID uuid.UUID
	OccurredAt    time.Time
	DurationMs    int64
	ProgressPct   int32
	IsComplete    bool
	// Qualified 表示该样本自身跨过了合格线，仅递增 qualified_count。
	Qualified bool
}

// AppendSample 追加样本并滚动更新最大时长/进度、完成标记与末次互动时间。
// 不触碰聚合计数；重复信号永远不会二次计数。
func (r *InteractionRepository) AppendSample(ctx context.Context, sess txmanager.Session, input AppendSampleInput) (*po.Interaction, error) {
	occurredAt := input.OccurredAt.UTC()
	if err := r.insertSample(ctx, sess, input.InteractionID, occurredAt, input.DurationMs, input.ProgressPct, input.IsComplete); err != nil {
		return nil, err
	}

	qualifiedDelta := int64(0)
	if input.Qualified {
		qualifiedDelta = 1
	}
	row := r.q(sess).QueryRow(ctx, `
UPDATE engagement.interactions SET
    qualified_count     = qualified_count + $2,
    sample_count        = sample_count + 1,
    max_duration_ms     = GREATEST(max_duration_ms, $3),
    max_progress_pct    = GREATEST(max_progress_pct, $4),
    is_complete         = is_complete OR $5,
    last_interaction_at = GREATEST(last_interaction_at, $6),
    updated_at          = now()
WHERE interaction_id = $1
RETURNING`+interactionColumns,
		input.InteractionID, qualifiedDelta, input.DurationMs, input.ProgressPct,
		input.IsComplete, mappers.ToPgTimestamptz(&occurredAt))

	record, err := scanInteraction(row)
	if err != nil {
		return nil, fmt.Errorf("append interaction sample: %w", err)
	}
	return record, nil
}

// Samples 按时间序返回某条记录的全部样本。
func (r *InteractionRepository) Samples(ctx context.Context, sess txmanager.Session, interactionID uuid.UUID) ([]po.InteractionSample, error) {
	rows, err := r.q(sess).Query(ctx, `
SELECT sample_id, interaction_id, occurred_at, duration_ms, progress_pct, is_complete
FROM engagement.interaction_samples
WHERE interaction_id = $1
ORDER BY occurred_at, sample_id`, interactionID)
	if err != nil {
		return nil, fmt.Errorf("list interaction samples: %w", err)
	}
	defer rows.Close()

	var samples []po.InteractionSample
	for rows.Next() {
		var s po.InteractionSample
		var occurredAt time.Time
		if err := rows.Scan(&s.SampleID, &s.InteractionID, &occurredAt, &s.DurationMs, &s.ProgressPct, &s.IsComplete); err != nil {
			return nil, fmt.Errorf("scan interaction sample: %w", err)
		}
		s.OccurredAt = occurredAt.UTC()
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interaction samples: %w", err)
	}
	return samples, nil
}

// Remove 软删除记录；聚合计数不回退，审核扣减由外部流程负责。
func (r *InteractionRepository) Remove(ctx context.Context, sess txmanager.Session, interactionID uuid.UUID) error {
	tag, err := r.q(sess).Exec(ctx, `
UPDATE engagement.interactions SET is_removed = TRUE, updated_at = now()
WHERE interaction_id = $1 AND NOT is_removed`, interactionID)
	if err != nil {
		return fmt.Errorf("remove interaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("remove interaction: %w", pgx.ErrNoRows)
	}
	return nil
}

func (r *InteractionRepository) insertSample(ctx context.Context, sess txmanager.Session, interactionID uuid.UUID, occurredAt time.Time, durationMs int64, progressPct int32, isComplete bool) error {
	ts := occurredAt
	if _, err := r.q(sess).Exec(ctx, `
INSERT INTO engagement.interaction_samples (interaction_id, occurred_at, duration_ms, progress_pct, is_complete)
VALUES ($1, $2, $3, $4, $5)`,
		interactionID, mappers.ToPgTimestamptz(&ts), durationMs, progressPct, isComplete); err != nil {
		return fmt.Errorf("insert interaction sample: %w", err)
	}
	return nil
}

func (r *InteractionRepository) q(sess txmanager.Session) querier {
	if sess != nil && sess.Tx() != nil {
		return sess.Tx()
	}
	return r.db
}

func scanInteraction(row pgx.Row) (*po.Interaction, error) {
	var record po.Interaction
	var kind string
	var lastAt, createdAt, updatedAt time.Time
	if err := row.Scan(
		&record.InteractionID, &record.UserID, &record.ContentID, &kind,
		&record.QualifiedCount, &record.SampleCount, &record.MaxDurationMs, &record.MaxProgressPct,
		&record.IsComplete, &lastAt, &record.IsRemoved, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	record.Kind = po.InteractionKind(kind)
	record.LastInteractionAt = lastAt.UTC()
	record.CreatedAt = createdAt.UTC()
	record.UpdatedAt = updatedAt.UTC()
	return &record, nil
}
