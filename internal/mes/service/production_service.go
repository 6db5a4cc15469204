package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/erp"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxRequestKeyLen 与 mes_production_entries.request_key 列宽一致
const maxRequestKeyLen = 64

// EntryValidation 报工数量校验结果
type EntryValidation struct {
	Valid                bool     `json:"valid"`
	Errors               []string `json:"errors"`
	RemainingQty         float64  `json:"remaining_qty"`
	NewRemainingQty      float64  `json:"new_remaining_qty"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
}

// ReportRequest 报工请求
type ReportRequest struct {
	OrderID     int64   `json:"order_id"`
	AcceptedQty float64 `json:"accepted_qty"`
	RejectedQty float64 `json:"rejected_qty"`
	EmployeeID  int64   `json:"employee_id"`
	RequestKey  string  `json:"request_key"` // 为空时自动生成，重试时传入同一个值
}

// ProductionEntryResult 报工结果，数量为本地估算值，以ERP为准
type ProductionEntryResult struct {
	RequestKey          string           `json:"request_key"`
	BatchNumber         *string          `json:"batch_number"`
	MaterialIssueDocRef *erp.DocumentRef `json:"material_issue_doc_ref"`
	AcceptedDocRef      *erp.DocumentRef `json:"accepted_doc_ref"`
	RejectedDocRef      *erp.DocumentRef `json:"rejected_doc_ref"`
	CompletedQty        float64          `json:"completed_qty"`
	RejectedQty         float64          `json:"rejected_qty"`
	RemainingQty        float64          `json:"remaining_qty"`
	ProgressPercent     int              `json:"progress_percent"`
	Materials           []IssuedMaterial `json:"materials,omitempty"`
}

// ProductionService 报工编排：倒冲发料 → 合格品入库 → 不良品入库
type ProductionService struct {
	workOrders      WorkOrderStore
	entries         ProductionEntryStore
	stock           *StockService
	backflush       *BackflushService
	batches         *BatchNumberGenerator
	client          DocumentClient
	rejectWarehouse string
	logger          *zap.Logger
	now             func() time.Time
}

func NewProductionService(
	workOrders WorkOrderStore,
	entries ProductionEntryStore,
	stock *StockService,
	backflush *BackflushService,
	batches *BatchNumberGenerator,
	client DocumentClient,
	rejectWarehouse string,
	logger *zap.Logger,
) *ProductionService {
	if rejectWarehouse == "" {
		rejectWarehouse = "SCRAP"
	}
	return &ProductionService{
		workOrders:      workOrders,
		entries:         entries,
		stock:           stock,
		backflush:       backflush,
		batches:         batches,
		client:          client,
		rejectWarehouse: rejectWarehouse,
		logger:          logger.Named("production"),
		now:             time.Now,
	}
}

// evaluateEntry 纯数量校验
func evaluateEntry(remaining, accepted, rejected float64) EntryValidation {
	v := EntryValidation{RemainingQty: remaining, Errors: []string{}}
	if !finite(accepted) || !finite(rejected) || !finite(remaining) {
		v.Errors = append(v.Errors, "quantity must be a finite number")
		return v
	}
	if accepted < 0 {
		v.Errors = append(v.Errors, "accepted quantity cannot be negative")
	}
	if rejected < 0 {
		v.Errors = append(v.Errors, "rejected quantity cannot be negative")
	}
	total := dec(accepted).Add(dec(rejected))
	if len(v.Errors) == 0 {
		if !total.IsPositive() {
			v.Errors = append(v.Errors, "quantity must be greater than zero")
		} else if total.GreaterThan(dec(remaining)) {
			v.Errors = append(v.Errors, "quantity exceeds remaining quantity")
		}
	}
	if len(v.Errors) > 0 {
		return v
	}
	v.Valid = true
	v.NewRemainingQty = qty(dec(remaining).Sub(total))
	v.RequiresConfirmation = dec(accepted).GreaterThan(dec(remaining).Div(decimal2))
	return v
}

func (s *ProductionService) loadOpenOrder(ctx context.Context, orderID int64) (*entity.WorkOrder, error) {
	if orderID <= 0 {
		return nil, ValidationError("order id must be positive")
	}
	wo, err := s.workOrders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ValidationError("work order %d not found", orderID)
		}
		return nil, fmt.Errorf("find work order: %w", err)
	}
	if !wo.IsOpen() {
		return nil, ValidationError("work order %s is not open for reporting (status %s)", wo.DocNum, wo.Status)
	}
	return wo, nil
}

// ValidateEntry 校验报工数量
func (s *ProductionService) ValidateEntry(ctx context.Context, orderID int64, accepted, rejected float64) (*EntryValidation, error) {
	wo, err := s.loadOpenOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	v := evaluateEntry(wo.RemainingQty(), accepted, rejected)
	return &v, nil
}

// GetRequirements 报工前预览物料需求
func (s *ProductionService) GetRequirements(ctx context.Context, orderID int64, entryQty float64) ([]MaterialRequirement, error) {
	if _, err := s.loadOpenOrder(ctx, orderID); err != nil {
		return nil, err
	}
	if !finite(entryQty) {
		return nil, ValidationError("quantity must be a finite number")
	}
	if entryQty <= 0 {
		return nil, ValidationError("quantity must be greater than zero")
	}
	return s.stock.ComputeRequirements(ctx, orderID, entryQty)
}

// Report 报工
// 发料成功后入库失败不回滚发料，同一 RequestKey 重试会从失败的步骤继续
func (s *ProductionService) Report(ctx context.Context, req ReportRequest) (result *ProductionEntryResult, err error) {
	defer func() {
		metrics.RecordProductionEntry(resultLabel(err))
	}()

	if req.EmployeeID <= 0 {
		return nil, ValidationError("employee id must be positive")
	}
	wo, err := s.loadOpenOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	req.RequestKey = strings.TrimSpace(req.RequestKey)
	if len(req.RequestKey) > maxRequestKeyLen {
		return nil, ValidationError("request key must be at most %d characters", maxRequestKeyLen)
	}
	var entry *entity.ProductionEntry
	if req.RequestKey != "" {
		entry, err = s.entries.FindByRequestKey(ctx, req.RequestKey)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("find production entry: %w", err)
		}
	} else {
		req.RequestKey = uuid.New().String()
	}

	if entry != nil {
		if entry.WorkOrderID != req.OrderID || entry.AcceptedQty != req.AcceptedQty || entry.RejectedQty != req.RejectedQty {
			return nil, ConflictError("request key %s was used for a different entry", req.RequestKey)
		}
		if entry.Status == entity.EntryStatusCompleted {
			return s.storedResult(wo, entry), nil
		}
	}

	v := evaluateEntry(wo.RemainingQty(), req.AcceptedQty, req.RejectedQty)
	if !v.Valid {
		return nil, ValidationError("%s", strings.Join(v.Errors, "; "))
	}

	if entry == nil {
		entry, err = s.newEntry(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	log := s.logger.With(
		zap.String("request_key", entry.RequestKey),
		zap.String("batch_number", entry.BatchNumber),
		zap.Int64("work_order_id", wo.ID),
	)
	result = &ProductionEntryResult{RequestKey: entry.RequestKey}
	if entry.BatchNumber != "" {
		bn := entry.BatchNumber
		result.BatchNumber = &bn
	}

	// 1. 倒冲发料
	if doc := entry.Document(entity.StepMaterialIssue); doc.Succeeded() {
		result.MaterialIssueDocRef = docRef(doc)
	} else {
		bf, err := s.backflush.Execute(ctx, BackflushRequest{
			WorkOrder:      wo,
			EntryQty:       qty(dec(req.AcceptedQty).Add(dec(req.RejectedQty))),
			EmployeeID:     req.EmployeeID,
			IdempotencyKey: idempotencyKey(entry, entity.StepMaterialIssue),
			DocDate:        s.localNow(),
		})
		if err != nil {
			s.fail(ctx, entry, entity.EntryStatusFailed, err)
			if KindOf(err) == KindInsufficientStock {
				return nil, err
			}
			log.Error("material backflush failed", zap.Error(err))
			return nil, &Error{Kind: KindValidation, Message: "material backflush failed: " + userMessage(err), Err: err}
		}
		result.Materials = bf.Materials
		if bf.HasDocument() {
			ref := &erp.DocumentRef{DocEntry: bf.DocEntry, DocNum: bf.DocNum}
			if err := s.recordDocument(ctx, entry, entity.StepMaterialIssue, ref, nil); err != nil {
				return nil, err
			}
			result.MaterialIssueDocRef = ref
		}
		entry.Status = entity.EntryStatusMaterialIssued
		entry.LastError = ""
		if err := s.entries.UpdateStatus(ctx, entry); err != nil {
			return nil, fmt.Errorf("update production entry: %w", err)
		}
	}

	// 2. 合格品入库
	if req.AcceptedQty > 0 {
		ref, err := s.receipt(ctx, wo, entry, entity.StepReceiptComplete, req.AcceptedQty, wo.Warehouse, erp.TransactionComplete)
		if err != nil {
			log.Error("accepted goods receipt failed", zap.Error(err))
			return nil, err
		}
		result.AcceptedDocRef = ref
	}

	// 3. 不良品入库
	if req.RejectedQty > 0 {
		ref, err := s.receipt(ctx, wo, entry, entity.StepReceiptReject, req.RejectedQty, s.rejectWarehouse, erp.TransactionReject)
		if err != nil {
			log.Error("rejected goods receipt failed", zap.Error(err))
			return nil, err
		}
		result.RejectedDocRef = ref
	}

	// 4. 本地进度，在库里累加，并发报工互不覆盖
	wo, err = s.workOrders.AddProgress(ctx, wo.ID, req.AcceptedQty, req.RejectedQty)
	if err != nil {
		return nil, fmt.Errorf("update work order progress: %w", err)
	}
	entry.Status = entity.EntryStatusCompleted
	entry.LastError = ""
	if err := s.entries.UpdateStatus(ctx, entry); err != nil {
		return nil, fmt.Errorf("update production entry: %w", err)
	}

	fillProgress(result, wo)
	log.Info("production entry completed",
		zap.Float64("accepted_qty", req.AcceptedQty),
		zap.Float64("rejected_qty", req.RejectedQty),
		zap.Float64("completed_qty", result.CompletedQty),
	)
	return result, nil
}

// localNow 单据日期与批次号使用同一时区
func (s *ProductionService) localNow() time.Time {
	return s.now().In(s.batches.Location())
}

func (s *ProductionService) newEntry(ctx context.Context, req ReportRequest) (*entity.ProductionEntry, error) {
	entry := &entity.ProductionEntry{
		RequestKey:  req.RequestKey,
		WorkOrderID: req.OrderID,
		EmployeeID:  req.EmployeeID,
		AcceptedQty: req.AcceptedQty,
		RejectedQty: req.RejectedQty,
		Status:      entity.EntryStatusPending,
	}
	if req.AcceptedQty+req.RejectedQty > 0 {
		bn, err := s.batches.Generate(ctx, s.now())
		if err != nil {
			return nil, err
		}
		entry.BatchNumber = bn
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		// 同一请求键的并发请求，唯一索引只放行一个
		if _, findErr := s.entries.FindByRequestKey(ctx, req.RequestKey); findErr == nil {
			return nil, ConflictError("request key %s is already being processed", req.RequestKey)
		}
		return nil, fmt.Errorf("create production entry: %w", err)
	}
	return entry, nil
}

// receipt 创建一张成品入库单，已成功的步骤直接返回
func (s *ProductionService) receipt(ctx context.Context, wo *entity.WorkOrder, entry *entity.ProductionEntry, step string, quantity float64, warehouse, txType string) (*erp.DocumentRef, error) {
	if doc := entry.Document(step); doc.Succeeded() {
		return docRef(doc), nil
	}

	line := erp.ReceiptLine{
		BaseType:        erp.BaseTypeProductionOrder,
		BaseEntry:       wo.ID,
		Quantity:        quantity,
		WarehouseCode:   warehouse,
		TransactionType: txType,
	}
	if entry.BatchNumber != "" {
		line.BatchNumbers = []erp.BatchLine{{BatchNumber: entry.BatchNumber, Quantity: quantity}}
	}
	doc := &erp.GoodsReceipt{
		DocDate:       s.localNow().Format("2006-01-02"),
		Comments:      fmt.Sprintf("Production report for order %s by employee %d", wo.DocNum, entry.EmployeeID),
		Reference2:    wo.DocNum,
		DocumentLines: []erp.ReceiptLine{line},
	}

	ref, err := s.client.CreateGoodsReceipt(ctx, doc, idempotencyKey(entry, step))
	if err != nil {
		if recErr := s.recordDocument(ctx, entry, step, nil, err); recErr != nil {
			s.logger.Error("record failed document", zap.String("step", step), zap.Error(recErr))
		}
		s.fail(ctx, entry, entity.EntryStatusMaterialIssued, err)
		return nil, IntegrationError(fmt.Sprintf("ERP rejected the %s goods receipt", receiptLabel(txType)), err)
	}
	if err := s.recordDocument(ctx, entry, step, ref, nil); err != nil {
		return nil, err
	}
	return ref, nil
}

func (s *ProductionService) recordDocument(ctx context.Context, entry *entity.ProductionEntry, step string, ref *erp.DocumentRef, cause error) error {
	doc := entity.ERPDocument{
		IdempotencyKey: idempotencyKey(entry, step),
		EntryID:        entry.ID,
		Step:           step,
		Status:         entity.DocStatusSucceeded,
	}
	if ref != nil {
		doc.DocEntry = ref.DocEntry
		doc.DocNum = ref.DocNum
	}
	if cause != nil {
		doc.Status = entity.DocStatusFailed
		doc.Error = cause.Error()
	}
	if err := s.entries.SaveDocument(ctx, &doc); err != nil {
		return fmt.Errorf("save erp document: %w", err)
	}
	if existing := entry.Document(step); existing != nil {
		*existing = doc
	} else {
		entry.Documents = append(entry.Documents, doc)
	}
	return nil
}

func (s *ProductionService) fail(ctx context.Context, entry *entity.ProductionEntry, status string, cause error) {
	entry.Status = status
	entry.LastError = cause.Error()
	if err := s.entries.UpdateStatus(ctx, entry); err != nil {
		s.logger.Error("update production entry failed", zap.String("request_key", entry.RequestKey), zap.Error(err))
	}
}

// storedResult 已完成报工的结果，不再访问ERP
func (s *ProductionService) storedResult(wo *entity.WorkOrder, entry *entity.ProductionEntry) *ProductionEntryResult {
	result := &ProductionEntryResult{
		RequestKey:          entry.RequestKey,
		MaterialIssueDocRef: docRef(entry.Document(entity.StepMaterialIssue)),
		AcceptedDocRef:      docRef(entry.Document(entity.StepReceiptComplete)),
		RejectedDocRef:      docRef(entry.Document(entity.StepReceiptReject)),
	}
	if entry.BatchNumber != "" {
		bn := entry.BatchNumber
		result.BatchNumber = &bn
	}
	fillProgress(result, wo)
	return result
}

func fillProgress(result *ProductionEntryResult, wo *entity.WorkOrder) {
	result.CompletedQty = wo.CompletedQty
	result.RejectedQty = wo.RejectedQty
	result.RemainingQty = qty(dec(wo.PlannedQty).Sub(dec(wo.CompletedQty)))
	if wo.PlannedQty > 0 {
		result.ProgressPercent = int(dec(wo.CompletedQty).Div(dec(wo.PlannedQty)).Mul(decimal100).Round(0).IntPart())
	}
}

func docRef(doc *entity.ERPDocument) *erp.DocumentRef {
	if !doc.Succeeded() {
		return nil
	}
	return &erp.DocumentRef{DocEntry: doc.DocEntry, DocNum: doc.DocNum}
}

func idempotencyKey(entry *entity.ProductionEntry, step string) string {
	if entry.BatchNumber != "" {
		return entry.BatchNumber + ":" + step
	}
	return entry.RequestKey + ":" + step
}

func receiptLabel(txType string) string {
	if txType == erp.TransactionReject {
		return "rejected"
	}
	return "accepted"
}

// userMessage 业务错误返回原提示，数据库等内部错误只给通用提示
func userMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "unable to prepare the material issue"
}
