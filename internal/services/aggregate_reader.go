package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// aggregateCacheTTL 是聚合读缓存的生存期。写路径在净增后整族失效。
const aggregateCacheTTL = 30 * time.Second

// AggregateKey 返回某内容聚合缓存的键。
func AggregateKey(contentID uuid.UUID) string {
	return fmt.Sprintf("engagement:aggregate:%s", contentID)
}

// AggregateKeyPattern 返回该内容聚合键族的失效模式。
func AggregateKeyPattern(contentID uuid.UUID) string {
	return fmt.Sprintf("engagement:aggregate:%s*", contentID)
}

// CacheStore 是读路径依赖的 cache-aside 契约。
// 实现须在后端不可达时退化为直读，错误不得越过该边界。
type CacheStore interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) ([]byte, error)) ([]byte, bool, error)
	DeletePattern(ctx context.Context, pattern string)
}

// EngagementQueryService 封装聚合计数的只读用例（cache-aside 加速）。
type EngagementQueryService struct {
	stats StatsRepo
	cache CacheStore
	log   *log.Helper
}

// NewEngagementQueryService 构造查询服务。cache 可为 nil（直读）。
func NewEngagementQueryService(stats StatsRepo, cache CacheStore, logger log.Logger) *EngagementQueryService {
	return &EngagementQueryService{
		stats: stats,
		cache: cache,
		log:   log.NewHelper(logger),
	}
}

// AggregateCounts 返回某内容的聚合计数，优先走缓存。
func (s *EngagementQueryService) AggregateCounts(ctx context.Context, contentID uuid.UUID) (*po.ContentEngagementStats, error) {
	if s.cache == nil {
		return s.stats.Get(ctx, nil, contentID)
	}

	payload, hit, err := s.cache.GetOrCompute(ctx, AggregateKey(contentID), aggregateCacheTTL, func(ctx context.Context) ([]byte, error) {
		stats, statsErr := s.stats.Get(ctx, nil, contentID)
		if statsErr != nil {
			return nil, statsErr
		}
		return json.Marshal(stats)
	})
	if err != nil {
		return nil, fmt.Errorf("read aggregate counts: %w", err)
	}

	var stats po.ContentEngagementStats
	if unmarshalErr := json.Unmarshal(payload, &stats); unmarshalErr != nil {
		// 缓存内容损坏按未命中处理，直读兜底。
		s.log.WithContext(ctx).Warnf("corrupt aggregate cache entry: content_id=%s err=%v", contentID, unmarshalErr)
		s.cache.DeletePattern(ctx, AggregateKeyPattern(contentID))
		return s.stats.Get(ctx, nil, contentID)
	}
	if hit {
		s.log.WithContext(ctx).Debugf("aggregate cache hit: content_id=%s", contentID)
	}
	return &stats, nil
}
