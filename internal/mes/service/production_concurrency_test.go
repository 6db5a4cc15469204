package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/erp"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// gatedERP 入库请求在 release 关闭前挂起
type gatedERP struct {
	testutil.StubERP
	arrived chan struct{}
	release chan struct{}
}

func (g *gatedERP) CreateGoodsReceipt(ctx context.Context, doc *erp.GoodsReceipt, key string) (*erp.DocumentRef, error) {
	g.arrived <- struct{}{}
	<-g.release
	return g.StubERP.CreateGoodsReceipt(ctx, doc, key)
}

func TestReportOverlappingEntriesAccumulate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedWorkOrder(t, db, &entity.WorkOrder{ID: 5, PlannedQty: 1000})

	client := &gatedERP{arrived: make(chan struct{}, 2), release: make(chan struct{})}
	services := NewServices(repository.NewRepositories(db), nil, client, Options{Location: time.UTC}, zap.NewNop())

	const n = 2
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = services.Production.Report(context.Background(), ReportRequest{
				OrderID: 5, AcceptedQty: 100, EmployeeID: 42, RequestKey: fmt.Sprintf("overlap-%d", i),
			})
		}(i)
	}

	// 两个报工都读到了 completed=0 之后才放行
	for i := 0; i < n; i++ {
		select {
		case <-client.arrived:
		case <-time.After(5 * time.Second):
			close(client.release)
			t.Fatal("goods receipts did not overlap")
		}
	}
	close(client.release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, client.Receipts, 2)

	var wo entity.WorkOrder
	require.NoError(t, db.First(&wo, 5).Error)
	assert.Equal(t, 200.0, wo.CompletedQty)
	assert.Equal(t, entity.WOStatusInProgress, wo.Status)
}
