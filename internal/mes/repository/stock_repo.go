package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// StockRepository 库存与批次快照
type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

func (r *StockRepository) UpsertItemStock(ctx context.Context, s *entity.ItemStock) error {
	return r.db.WithContext(ctx).
		Where("item_code = ? AND warehouse = ?", s.ItemCode, s.Warehouse).
		Assign(map[string]interface{}{"on_hand": s.OnHand, "committed": s.Committed}).
		FirstOrCreate(s).Error
}

func (r *StockRepository) CreateBatch(ctx context.Context, b *entity.StockBatch) error {
	return r.db.WithContext(ctx).Create(b).Error
}

// GetAvailableQty 物料在仓库的可用数量，无记录视为0
func (r *StockRepository) GetAvailableQty(ctx context.Context, itemCode, warehouse string) (float64, error) {
	var result struct{ Total float64 }
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(on_hand - committed), 0) AS total
		FROM mes_item_stock
		WHERE item_code = ? AND warehouse = ?
	`, itemCode, warehouse).Scan(&result).Error
	if result.Total < 0 {
		result.Total = 0
	}
	return result.Total, err
}

// GetAvailableBatches 有余量的批次，最新入库在前
func (r *StockRepository) GetAvailableBatches(ctx context.Context, itemCode, warehouse string) ([]entity.StockBatch, error) {
	var batches []entity.StockBatch
	err := r.db.WithContext(ctx).
		Where("item_code = ? AND warehouse = ? AND quantity > 0", itemCode, warehouse).
		Order("in_date DESC").Order("entry_ordinal DESC").
		Find(&batches).Error
	return batches, err
}

// MaxBatchSequence 当日已用的最大流水号，没有时返回 nil
// 批次快照和本地报工记录都会参与计算
func (r *StockRepository) MaxBatchSequence(ctx context.Context, dayKey string) (*int, error) {
	pattern := dayKey + "%"
	var codes []string
	if err := r.db.WithContext(ctx).Model(&entity.StockBatch{}).
		Where("batch_number LIKE ?", pattern).
		Pluck("batch_number", &codes).Error; err != nil {
		return nil, err
	}
	var local []string
	if err := r.db.WithContext(ctx).Model(&entity.ProductionEntry{}).
		Where("batch_number LIKE ?", pattern).
		Pluck("batch_number", &local).Error; err != nil {
		return nil, err
	}
	codes = append(codes, local...)

	var max *int
	for _, code := range codes {
		seq, err := strconv.Atoi(strings.TrimPrefix(code, dayKey))
		if err != nil {
			continue
		}
		if max == nil || seq > *max {
			v := seq
			max = &v
		}
	}
	return max, nil
}
