package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const batchSeqKeyTTL = 48 * time.Hour

// FormatBatchNumber {PREFIX}{YYYYMMDD}{SEQ:03d}
func FormatBatchNumber(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s%03d", DayKey(prefix, day), seq)
}

// DayKey {PREFIX}{YYYYMMDD}
func DayKey(prefix string, day time.Time) string {
	return prefix + day.Format("20060102")
}

// NextSequence 当日最大流水号加一，没有记录时为1
func NextSequence(max *int) int {
	if max == nil {
		return 1
	}
	return *max + 1
}

// BatchNumberGenerator 批次号生成
type BatchNumberGenerator struct {
	prefix  string
	loc     *time.Location
	stock   StockStore
	counter SequenceCounter
}

func NewBatchNumberGenerator(prefix string, loc *time.Location, stock StockStore, counter SequenceCounter) *BatchNumberGenerator {
	if loc == nil {
		loc = time.Local
	}
	return &BatchNumberGenerator{prefix: prefix, loc: loc, stock: stock, counter: counter}
}

// Location 批次号日期所用时区
func (g *BatchNumberGenerator) Location() *time.Location {
	return g.loc
}

// Generate 生成当日下一个批次号
// 已有批次的最大流水号只作为计数器下限，真正的分配由计数器原子完成
func (g *BatchNumberGenerator) Generate(ctx context.Context, now time.Time) (string, error) {
	day := now.In(g.loc)
	key := DayKey(g.prefix, day)

	max, err := g.stock.MaxBatchSequence(ctx, key)
	if err != nil {
		return "", fmt.Errorf("query max batch sequence: %w", err)
	}
	floor := NextSequence(max) - 1

	seq, err := g.counter.Next(ctx, key, floor)
	if err != nil {
		return "", fmt.Errorf("allocate batch sequence: %w", err)
	}
	metrics.RecordBatchNumber()
	return FormatBatchNumber(g.prefix, day, seq), nil
}

// RedisSequenceCounter 基于 Redis INCR 的计数器
type RedisSequenceCounter struct {
	rdb *redis.Client
}

func NewRedisSequenceCounter(rdb *redis.Client) *RedisSequenceCounter {
	return &RedisSequenceCounter{rdb: rdb}
}

var redisSeqScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if cur < floor then
  redis.call('SET', KEYS[1], floor)
end
local v = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return v
`)

// Next 以 floor 为下限原子自增
func (c *RedisSequenceCounter) Next(ctx context.Context, dayKey string, floor int) (int, error) {
	v, err := redisSeqScript.Run(ctx, c.rdb, []string{"mes:batchseq:" + dayKey},
		floor, batchSeqKeyTTL.Milliseconds()).Int()
	if err != nil {
		return 0, err
	}
	return v, nil
}
