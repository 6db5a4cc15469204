package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductionEntryRepository 报工记录及其ERP单据
type ProductionEntryRepository struct {
	db *gorm.DB
}

func NewProductionEntryRepository(db *gorm.DB) *ProductionEntryRepository {
	return &ProductionEntryRepository{db: db}
}

func (r *ProductionEntryRepository) Create(ctx context.Context, e *entity.ProductionEntry) error {
	return r.db.WithContext(ctx).Omit("Documents").Create(e).Error
}

// FindByRequestKey 按请求键查找，含已创建的单据
func (r *ProductionEntryRepository) FindByRequestKey(ctx context.Context, key string) (*entity.ProductionEntry, error) {
	var e entity.ProductionEntry
	err := r.db.WithContext(ctx).Preload("Documents").
		Where("request_key = ?", key).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// UpdateStatus 更新报工状态和最后错误
func (r *ProductionEntryRepository) UpdateStatus(ctx context.Context, e *entity.ProductionEntry) error {
	return r.db.WithContext(ctx).Model(&entity.ProductionEntry{}).
		Where("id = ?", e.ID).
		Updates(map[string]interface{}{
			"status":     e.Status,
			"last_error": e.LastError,
		}).Error
}

// SaveDocument 按幂等键写入或覆盖单据步骤
func (r *ProductionEntryRepository) SaveDocument(ctx context.Context, d *entity.ERPDocument) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"doc_entry", "doc_num", "status", "error", "updated_at"}),
	}).Create(d).Error
}
