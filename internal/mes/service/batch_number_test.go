package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBatchNumber(t *testing.T) {
	d := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, "PRD20240315001", FormatBatchNumber("PRD", d, NextSequence(nil)))
	seven := 7
	assert.Equal(t, "PRD20240315008", FormatBatchNumber("PRD", d, NextSequence(&seven)))
	assert.Equal(t, "PRD202403151000", FormatBatchNumber("PRD", d, 1000))
}

func TestBatchNumberGenerator(t *testing.T) {
	f := newFixture()
	gen := NewBatchNumberGenerator("PRD", time.UTC, f.store, f.store)
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	bn, err := gen.Generate(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, "PRD20240315001", bn)

	// 已有当日批次 PRD20240315007
	f.store.maxSeq["PRD20240316"] = 7
	bn, err = gen.Generate(context.Background(), now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "PRD20240316008", bn)
}

func TestBatchNumberUsesLocation(t *testing.T) {
	f := newFixture()
	loc := time.FixedZone("UTC+3", 3*3600)
	gen := NewBatchNumberGenerator("PRD", loc, f.store, f.store)

	// UTC 22:30 已是当地次日
	bn, err := gen.Generate(context.Background(), time.Date(2024, 3, 15, 22, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "PRD20240316001", bn)
}

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisSequenceCounter(t *testing.T) {
	counter := NewRedisSequenceCounter(newMiniRedis(t))
	ctx := context.Background()

	v, err := counter.Next(ctx, "PRD20240315", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = counter.Next(ctx, "PRD20240315", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	// 下限高于计数器时跳到下限之后
	v, err = counter.Next(ctx, "PRD20240315", 10)
	require.NoError(t, err)
	assert.Equal(t, 11, v)
}

func TestRedisSequenceCounterConcurrent(t *testing.T) {
	counter := NewRedisSequenceCounter(newMiniRedis(t))
	ctx := context.Background()

	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := counter.Next(ctx, "PRD20240315", 0)
			assert.NoError(t, err)
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
