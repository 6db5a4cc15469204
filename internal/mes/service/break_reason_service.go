package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	breakReasonCacheKey = "mes:break_reasons"
	breakReasonCacheTTL = 10 * time.Minute
)

// BreakReasonService 停机原因
type BreakReasonService struct {
	repo   BreakReasonStore
	rdb    *redis.Client // 可为空
	logger *zap.Logger
}

func NewBreakReasonService(repo BreakReasonStore, rdb *redis.Client, logger *zap.Logger) *BreakReasonService {
	return &BreakReasonService{repo: repo, rdb: rdb, logger: logger.Named("break_reason")}
}

// Validate 校验停机原因编码
func (s *BreakReasonService) Validate(ctx context.Context, code string) (*entity.BreakReason, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ValidationError("break code is required")
	}
	br, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ValidationError("invalid break code: %s", code)
		}
		return nil, fmt.Errorf("find break reason: %w", err)
	}
	if !br.Active {
		return nil, ValidationError("invalid break code: %s", code)
	}
	return br, nil
}

// List 全部启用的停机原因，优先读缓存
func (s *BreakReasonService) List(ctx context.Context) ([]entity.BreakReason, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, breakReasonCacheKey).Bytes(); err == nil {
			var items []entity.BreakReason
			if err := json.Unmarshal(cached, &items); err == nil {
				return items, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("break reason cache read failed", zap.Error(err))
		}
	}

	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list break reasons: %w", err)
	}

	if s.rdb != nil {
		if data, err := json.Marshal(items); err == nil {
			if err := s.rdb.Set(ctx, breakReasonCacheKey, data, breakReasonCacheTTL).Err(); err != nil {
				s.logger.Warn("break reason cache write failed", zap.Error(err))
			}
		}
	}
	return items, nil
}

// Search 按关键字查询，关键字为空时等同 List
func (s *BreakReasonService) Search(ctx context.Context, keyword string) ([]entity.BreakReason, error) {
	if strings.TrimSpace(keyword) == "" {
		return s.List(ctx)
	}
	items, err := s.repo.Search(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("search break reasons: %w", err)
	}
	return items, nil
}

// InvalidateCache 清除停机原因缓存
func (s *BreakReasonService) InvalidateCache(ctx context.Context) {
	if s.rdb != nil {
		s.rdb.Del(ctx, breakReasonCacheKey)
	}
}
