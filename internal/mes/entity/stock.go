package entity

import (
	"time"
)

// ItemStock 物料仓库库存快照
type ItemStock struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	ItemCode  string    `json:"item_code" gorm:"size:64;not null;uniqueIndex:idx_item_stock_item_wh"`
	Warehouse string    `json:"warehouse" gorm:"size:20;not null;uniqueIndex:idx_item_stock_item_wh"`
	OnHand    float64   `json:"on_hand" gorm:"type:decimal(19,6);not null;default:0"`
	Committed float64   `json:"committed" gorm:"type:decimal(19,6);default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ItemStock) TableName() string {
	return "mes_item_stock"
}

// Available 可用数量，不小于0
func (s *ItemStock) Available() float64 {
	avail := s.OnHand - s.Committed
	if avail < 0 {
		return 0
	}
	return avail
}

// StockBatch 批次库存快照
type StockBatch struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	ItemCode     string    `json:"item_code" gorm:"size:64;not null;index:idx_batch_item_wh"`
	Warehouse    string    `json:"warehouse" gorm:"size:20;not null;index:idx_batch_item_wh"`
	BatchNumber  string    `json:"batch_number" gorm:"size:50;not null;index"`
	InDate       time.Time `json:"in_date" gorm:"not null"`
	EntryOrdinal int64     `json:"entry_ordinal" gorm:"not null;default:0"` // 同日入库先后
	Quantity     float64   `json:"quantity" gorm:"type:decimal(19,6);not null;default:0"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (StockBatch) TableName() string {
	return "mes_stock_batches"
}
