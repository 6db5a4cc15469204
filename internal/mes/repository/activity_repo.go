package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityRepository 作业记录仓库，只提供追加和查询
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create 追加作业记录
func (r *ActivityRepository) Create(ctx context.Context, a *entity.Activity) error {
	if a.Code == "" {
		a.Code = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

// FindLatest 某员工在某订单上的最新记录，没有记录时返回 nil, nil
func (r *ActivityRepository) FindLatest(ctx context.Context, woID, employeeID int64) (*entity.Activity, error) {
	var a entity.Activity
	err := r.db.WithContext(ctx).
		Where("work_order_id = ? AND employee_id = ?", woID, employeeID).
		Order("started_at DESC").Order("id DESC").
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// FindByWorkOrder 订单全部作业记录，按时间升序
func (r *ActivityRepository) FindByWorkOrder(ctx context.Context, woID int64) ([]entity.Activity, error) {
	var items []entity.Activity
	err := r.db.WithContext(ctx).
		Where("work_order_id = ?", woID).
		Order("started_at ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

// FindLatestPerEmployee 订单上每个员工的最新记录
func (r *ActivityRepository) FindLatestPerEmployee(ctx context.Context, woID int64) ([]entity.Activity, error) {
	items, err := r.FindByWorkOrder(ctx, woID)
	if err != nil {
		return nil, err
	}
	latest := make(map[int64]int)
	var order []int64
	for i, a := range items {
		if _, ok := latest[a.EmployeeID]; !ok {
			order = append(order, a.EmployeeID)
		}
		latest[a.EmployeeID] = i
	}
	result := make([]entity.Activity, 0, len(order))
	for _, empID := range order {
		result = append(result, items[latest[empID]])
	}
	return result, nil
}
