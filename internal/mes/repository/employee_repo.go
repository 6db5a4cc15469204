package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) Create(ctx context.Context, e *entity.Employee) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// FindNames 批量查询员工显示名
func (r *EmployeeRepository) FindNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var employees []entity.Employee
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&employees).Error; err != nil {
		return nil, err
	}
	for i := range employees {
		names[employees[i].ID] = employees[i].DisplayName()
	}
	return names, nil
}

// BreakReasonRepository 停机原因仓库
type BreakReasonRepository struct {
	db *gorm.DB
}

func NewBreakReasonRepository(db *gorm.DB) *BreakReasonRepository {
	return &BreakReasonRepository{db: db}
}

func (r *BreakReasonRepository) Create(ctx context.Context, br *entity.BreakReason) error {
	return r.db.WithContext(ctx).Create(br).Error
}

func (r *BreakReasonRepository) FindByCode(ctx context.Context, code string) (*entity.BreakReason, error) {
	var br entity.BreakReason
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&br).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &br, nil
}

// ListActive 全部启用的停机原因
func (r *BreakReasonRepository) ListActive(ctx context.Context) ([]entity.BreakReason, error) {
	var items []entity.BreakReason
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("code ASC").Find(&items).Error
	return items, err
}

// Search 按编码或名称模糊查询
func (r *BreakReasonRepository) Search(ctx context.Context, keyword string) ([]entity.BreakReason, error) {
	kw := "%" + strings.ToLower(strings.TrimSpace(keyword)) + "%"
	var items []entity.BreakReason
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", kw, kw).
		Order("code ASC").
		Find(&items).Error
	return items, err
}
