package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移所有MES表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 基础数据
		&Employee{},
		&BreakReason{},

		// 生产订单
		&WorkOrder{},
		&WorkOrderMaterial{},

		// 库存快照
		&ItemStock{},
		&StockBatch{},

		// 作业记录
		&Activity{},

		// 报工
		&ProductionEntry{},
		&ERPDocument{},
		&BatchSequence{},
	)
}
