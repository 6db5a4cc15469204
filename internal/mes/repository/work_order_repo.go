package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

type WorkOrderRepository struct {
	db *gorm.DB
}

func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

func (r *WorkOrderRepository) Create(ctx context.Context, wo *entity.WorkOrder) error {
	return r.db.WithContext(ctx).Create(wo).Error
}

// FindByID 查找生产订单（不含BOM）
func (r *WorkOrderRepository) FindByID(ctx context.Context, id int64) (*entity.WorkOrder, error) {
	var wo entity.WorkOrder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wo, nil
}

// GetMaterials 获取订单BOM行，按行号排序
func (r *WorkOrderRepository) GetMaterials(ctx context.Context, woID int64) ([]entity.WorkOrderMaterial, error) {
	var materials []entity.WorkOrderMaterial
	err := r.db.WithContext(ctx).
		Where("work_order_id = ?", woID).
		Order("line_num ASC").
		Find(&materials).Error
	return materials, err
}

// AddProgress 在数据库中累加完工/报废数量，RELEASED 订单转为 IN_PROGRESS
// 返回更新后的订单
func (r *WorkOrderRepository) AddProgress(ctx context.Context, woID int64, accepted, rejected float64) (*entity.WorkOrder, error) {
	var wo entity.WorkOrder
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.WorkOrder{}).
			Where("id = ?", woID).
			Updates(map[string]interface{}{
				"completed_qty": gorm.Expr("completed_qty + ?", accepted),
				"rejected_qty":  gorm.Expr("rejected_qty + ?", rejected),
				"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
					entity.WOStatusReleased, entity.WOStatusInProgress),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ?", woID).First(&wo).Error
	})
	if err != nil {
		return nil, err
	}
	return &wo, nil
}
