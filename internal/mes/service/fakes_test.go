package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/erp"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"go.uber.org/zap"
)

type memStore struct {
	mu         sync.Mutex
	orders     map[int64]*entity.WorkOrder
	materials  map[int64][]entity.WorkOrderMaterial
	activities []entity.Activity
	employees  map[int64]string
	reasons    map[string]entity.BreakReason
	available  map[string]float64
	batches    map[string][]entity.StockBatch
	maxSeq     map[string]int
	entries    map[string]*entity.ProductionEntry
	docs       map[string]entity.ERPDocument
	seq        map[string]int
	nextID     int64

	materialsErr      error  // GetMaterials 返回的错误
	beforeEntryCreate func() // 报工记录写入前回调，用于模拟并发
}

func newMemStore() *memStore {
	return &memStore{
		orders:    map[int64]*entity.WorkOrder{},
		materials: map[int64][]entity.WorkOrderMaterial{},
		employees: map[int64]string{},
		reasons:   map[string]entity.BreakReason{},
		available: map[string]float64{},
		batches:   map[string][]entity.StockBatch{},
		maxSeq:    map[string]int{},
		entries:   map[string]*entity.ProductionEntry{},
		docs:      map[string]entity.ERPDocument{},
		seq:       map[string]int{},
	}
}

func stockKey(item, wh string) string { return item + "@" + wh }

func (m *memStore) FindByID(_ context.Context, id int64) (*entity.WorkOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wo, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *wo
	return &cp, nil
}

func (m *memStore) GetMaterials(_ context.Context, woID int64) ([]entity.WorkOrderMaterial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.materialsErr != nil {
		return nil, m.materialsErr
	}
	return append([]entity.WorkOrderMaterial(nil), m.materials[woID]...), nil
}

func (m *memStore) AddProgress(_ context.Context, woID int64, accepted, rejected float64) (*entity.WorkOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[woID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cur.CompletedQty += accepted
	cur.RejectedQty += rejected
	if cur.Status == entity.WOStatusReleased {
		cur.Status = entity.WOStatusInProgress
	}
	cp := *cur
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, a *entity.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.activities = append(m.activities, *a)
	return nil
}

func (m *memStore) FindLatest(_ context.Context, woID, employeeID int64) (*entity.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.activities) - 1; i >= 0; i-- {
		a := m.activities[i]
		if a.WorkOrderID == woID && a.EmployeeID == employeeID {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindByWorkOrder(_ context.Context, woID int64) ([]entity.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []entity.Activity
	for _, a := range m.activities {
		if a.WorkOrderID == woID {
			items = append(items, a)
		}
	}
	return items, nil
}

func (m *memStore) FindLatestPerEmployee(ctx context.Context, woID int64) ([]entity.Activity, error) {
	items, _ := m.FindByWorkOrder(ctx, woID)
	idx := map[int64]int{}
	var order []int64
	for i, a := range items {
		if _, ok := idx[a.EmployeeID]; !ok {
			order = append(order, a.EmployeeID)
		}
		idx[a.EmployeeID] = i
	}
	var result []entity.Activity
	for _, id := range order {
		result = append(result, items[idx[id]])
	}
	return result, nil
}

func (m *memStore) FindNames(_ context.Context, ids []int64) (map[int64]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := map[int64]string{}
	for _, id := range ids {
		if n, ok := m.employees[id]; ok {
			names[id] = n
		}
	}
	return names, nil
}

func (m *memStore) FindByCode(_ context.Context, code string) (*entity.BreakReason, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	br, ok := m.reasons[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &br, nil
}

func (m *memStore) ListActive(_ context.Context) ([]entity.BreakReason, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []entity.BreakReason
	for _, br := range m.reasons {
		if br.Active {
			items = append(items, br)
		}
	}
	return items, nil
}

func (m *memStore) Search(_ context.Context, keyword string) ([]entity.BreakReason, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kw := strings.ToLower(keyword)
	var items []entity.BreakReason
	for _, br := range m.reasons {
		if br.Active && (strings.Contains(strings.ToLower(br.Code), kw) || strings.Contains(strings.ToLower(br.Name), kw)) {
			items = append(items, br)
		}
	}
	return items, nil
}

func (m *memStore) GetAvailableQty(_ context.Context, itemCode, warehouse string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available[stockKey(itemCode, warehouse)], nil
}

func (m *memStore) GetAvailableBatches(_ context.Context, itemCode, warehouse string) ([]entity.StockBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.StockBatch(nil), m.batches[stockKey(itemCode, warehouse)]...), nil
}

func (m *memStore) MaxBatchSequence(_ context.Context, dayKey string) (*int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.maxSeq[dayKey]; ok {
		return &v, nil
	}
	return nil, nil
}

func (m *memStore) Next(_ context.Context, dayKey string, floor int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq[dayKey] < floor {
		m.seq[dayKey] = floor
	}
	m.seq[dayKey]++
	return m.seq[dayKey], nil
}

// entryStore 报工记录；与 memStore 分开以免 Create 方法冲突
type entryStore struct {
	m *memStore
}

func (s entryStore) Create(_ context.Context, e *entity.ProductionEntry) error {
	if hook := s.m.beforeEntryCreate; hook != nil {
		s.m.beforeEntryCreate = nil
		hook()
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.entries[e.RequestKey]; ok {
		return fmt.Errorf("UNIQUE constraint failed: mes_production_entries.request_key")
	}
	s.m.nextID++
	e.ID = s.m.nextID
	cp := *e
	cp.Documents = nil
	s.m.entries[e.RequestKey] = &cp
	return nil
}

func (s entryStore) FindByRequestKey(_ context.Context, key string) (*entity.ProductionEntry, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	e, ok := s.m.entries[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	cp.Documents = nil
	for _, d := range s.m.docs {
		if d.EntryID == e.ID {
			cp.Documents = append(cp.Documents, d)
		}
	}
	return &cp, nil
}

func (s entryStore) UpdateStatus(_ context.Context, e *entity.ProductionEntry) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cur := s.m.entries[e.RequestKey]
	cur.Status = e.Status
	cur.LastError = e.LastError
	return nil
}

func (s entryStore) SaveDocument(_ context.Context, d *entity.ERPDocument) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.docs[d.IdempotencyKey] = *d
	return nil
}

type issueCall struct {
	doc *erp.MaterialIssue
	key string
}

type receiptCall struct {
	doc *erp.GoodsReceipt
	key string
}

// fakeERP 记录提交的单据，可按次数注入失败
type fakeERP struct {
	mu          sync.Mutex
	issues      []issueCall
	receipts    []receiptCall
	nextDoc     int64
	failIssue   error
	failReceipt map[string]error // TransactionType -> error
}

func (f *fakeERP) CreateMaterialIssue(_ context.Context, doc *erp.MaterialIssue, key string) (*erp.DocumentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIssue != nil {
		return nil, f.failIssue
	}
	f.issues = append(f.issues, issueCall{doc: doc, key: key})
	f.nextDoc++
	return &erp.DocumentRef{DocEntry: 1000 + f.nextDoc, DocNum: 5000 + f.nextDoc}, nil
}

func (f *fakeERP) CreateGoodsReceipt(_ context.Context, doc *erp.GoodsReceipt, key string) (*erp.DocumentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failReceipt[doc.DocumentLines[0].TransactionType]; err != nil {
		return nil, err
	}
	f.receipts = append(f.receipts, receiptCall{doc: doc, key: key})
	f.nextDoc++
	return &erp.DocumentRef{DocEntry: 1000 + f.nextDoc, DocNum: 5000 + f.nextDoc}, nil
}

// fixture 组装好的服务和存储
type fixture struct {
	store      *memStore
	erp        *fakeERP
	activity   *ActivityService
	stock      *StockService
	backflush  *BackflushService
	production *ProductionService
	clock      *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now 每次调用前进一秒，保证记录时间严格递增
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newFixture() *fixture {
	store := newMemStore()
	client := &fakeERP{failReceipt: map[string]error{}}
	clock := &fakeClock{now: time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)}
	logger := zap.NewNop()

	breakReasons := NewBreakReasonService(store, nil, logger)
	activity := NewActivityService(store, store, store, breakReasons, logger)
	activity.now = clock.Now
	stock := NewStockService(store, store)
	backflush := NewBackflushService(stock, client, logger)
	batches := NewBatchNumberGenerator("PRD", time.UTC, store, store)
	production := NewProductionService(store, entryStore{m: store}, stock, backflush, batches, client, "", logger)
	production.now = clock.Now

	return &fixture{
		store:      store,
		erp:        client,
		activity:   activity,
		stock:      stock,
		backflush:  backflush,
		production: production,
		clock:      clock,
	}
}

func (f *fixture) addOrder(wo entity.WorkOrder, materials ...entity.WorkOrderMaterial) {
	if wo.Status == "" {
		wo.Status = entity.WOStatusReleased
	}
	if wo.Warehouse == "" {
		wo.Warehouse = "FG01"
	}
	if wo.DocNum == "" {
		wo.DocNum = fmt.Sprintf("WO-%d", wo.ID)
	}
	f.store.orders[wo.ID] = &wo
	f.store.materials[wo.ID] = materials
}

func (f *fixture) setStock(item, wh string, qty float64) {
	f.store.available[stockKey(item, wh)] = qty
}

func (f *fixture) addBatch(b entity.StockBatch) {
	k := stockKey(b.ItemCode, b.Warehouse)
	f.store.batches[k] = append(f.store.batches[k], b)
}
