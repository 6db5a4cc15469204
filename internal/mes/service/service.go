package service

import (
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options 报工相关配置
type Options struct {
	BatchPrefix     string
	RejectWarehouse string
	Location        *time.Location
}

// Services MES 服务集合
type Services struct {
	BreakReason *BreakReasonService
	Activity    *ActivityService
	Stock       *StockService
	Backflush   *BackflushService
	Production  *ProductionService
}

// NewServices 组装服务，rdb 为空时批次流水号走数据库计数
func NewServices(repos *repository.Repositories, rdb *redis.Client, client DocumentClient, opts Options, logger *zap.Logger) *Services {
	if opts.BatchPrefix == "" {
		opts.BatchPrefix = "PRD"
	}

	var counter SequenceCounter = repos.BatchSequence
	if rdb != nil {
		counter = NewRedisSequenceCounter(rdb)
	}

	breakReasons := NewBreakReasonService(repos.BreakReason, rdb, logger)
	stock := NewStockService(repos.WorkOrder, repos.Stock)
	backflush := NewBackflushService(stock, client, logger)
	batches := NewBatchNumberGenerator(opts.BatchPrefix, opts.Location, repos.Stock, counter)

	return &Services{
		BreakReason: breakReasons,
		Activity:    NewActivityService(repos.WorkOrder, repos.Activity, repos.Employee, breakReasons, logger),
		Stock:       stock,
		Backflush:   backflush,
		Production:  NewProductionService(repos.WorkOrder, repos.ProductionEntry, stock, backflush, batches, client, opts.RejectWarehouse, logger),
	}
}
