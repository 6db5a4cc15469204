package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkerState 员工在订单上的当前状态，由最新一条记录推导
type WorkerState struct {
	ProcessType  string           `json:"process_type"` // 无记录时为空
	CanStart     bool             `json:"can_start"`
	CanStop      bool             `json:"can_stop"`
	CanResume    bool             `json:"can_resume"`
	CanFinish    bool             `json:"can_finish"`
	LastActivity *entity.Activity `json:"last_activity,omitempty"`
}

// IsActive 是否处于开始/继续/暂停
func (s WorkerState) IsActive() bool {
	return s.CanFinish
}

func capabilities(processType string) WorkerState {
	switch processType {
	case entity.ProcessStart, entity.ProcessResume:
		return WorkerState{ProcessType: processType, CanStop: true, CanFinish: true}
	case entity.ProcessStop:
		return WorkerState{ProcessType: processType, CanResume: true, CanFinish: true}
	case entity.ProcessFinish:
		return WorkerState{ProcessType: processType, CanStart: true}
	}
	return WorkerState{CanStart: true}
}

// DeriveState 只取决于最新记录的动作类型
func DeriveState(latest *entity.Activity) WorkerState {
	if latest == nil {
		return capabilities("")
	}
	state := capabilities(latest.ProcessType)
	state.LastActivity = latest
	return state
}

// ReduceHistory 按时间顺序折叠作业记录
func ReduceHistory(records []entity.Activity) WorkerState {
	state := DeriveState(nil)
	for i := range records {
		state = DeriveState(&records[i])
	}
	return state
}

// ActionRequest 作业动作请求
type ActionRequest struct {
	OrderID      int64  `json:"order_id"`
	EmployeeID   int64  `json:"employee_id"`
	ResourceCode string `json:"resource_code"`
	BreakCode    string `json:"break_code"`
	Notes        string `json:"notes"`
}

// ActionResult 作业动作结果
type ActionResult struct {
	State     WorkerState `json:"state"`
	Timestamp time.Time   `json:"timestamp"`
}

// ActivityHistoryItem 作业历史行
type ActivityHistoryItem struct {
	Code         string    `json:"code"`
	EmployeeID   int64     `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	ResourceCode string    `json:"resource_code"`
	ProcessType  string    `json:"process_type"`
	ProcessLabel string    `json:"process_label"`
	StartedAt    time.Time `json:"started_at"`
	BreakCode    *string   `json:"break_code"`
	BreakReason  string    `json:"break_reason"`
	Notes        *string   `json:"notes"`
}

// ActiveWorker 订单上正在作业的员工
type ActiveWorker struct {
	EmployeeID   int64     `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	ResourceCode string    `json:"resource_code"`
	ProcessType  string    `json:"process_type"`
	ProcessLabel string    `json:"process_label"`
	Since        time.Time `json:"since"`
}

// ActivityService 作业状态跟踪
type ActivityService struct {
	workOrders   WorkOrderStore
	activities   ActivityStore
	employees    EmployeeStore
	breakReasons *BreakReasonService
	logger       *zap.Logger
	now          func() time.Time
}

func NewActivityService(workOrders WorkOrderStore, activities ActivityStore, employees EmployeeStore, breakReasons *BreakReasonService, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		workOrders:   workOrders,
		activities:   activities,
		employees:    employees,
		breakReasons: breakReasons,
		logger:       logger.Named("activity"),
		now:          time.Now,
	}
}

// GetWorkerState 查询员工当前状态
func (s *ActivityService) GetWorkerState(ctx context.Context, orderID, employeeID int64) (*WorkerState, error) {
	if orderID <= 0 || employeeID <= 0 {
		return nil, ValidationError("order id and employee id must be positive")
	}
	latest, err := s.activities.FindLatest(ctx, orderID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("find latest activity: %w", err)
	}
	state := DeriveState(latest)
	return &state, nil
}

// Start 开始作业
func (s *ActivityService) Start(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return s.transition(ctx, entity.ProcessStart, req, func(st WorkerState) bool { return st.CanStart },
		"cannot start: an activity is already in progress")
}

// Stop 暂停作业，必须提供有效的停机原因
func (s *ActivityService) Stop(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return s.transition(ctx, entity.ProcessStop, req, func(st WorkerState) bool { return st.CanStop },
		"cannot stop: no running activity")
}

// Resume 继续作业
func (s *ActivityService) Resume(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return s.transition(ctx, entity.ProcessResume, req, func(st WorkerState) bool { return st.CanResume },
		"cannot resume: activity is not paused")
}

// Finish 结束作业
func (s *ActivityService) Finish(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	return s.transition(ctx, entity.ProcessFinish, req, func(st WorkerState) bool { return st.CanFinish },
		"cannot finish: no activity in progress")
}

// transition 校验后追加一条记录，状态每次重新读取
func (s *ActivityService) transition(ctx context.Context, processType string, req ActionRequest, allowed func(WorkerState) bool, conflictMsg string) (result *ActionResult, err error) {
	defer func() {
		metrics.RecordActivity(processType, resultLabel(err))
	}()

	if err := s.validateAction(ctx, req); err != nil {
		return nil, err
	}

	var breakCode *string
	if processType == entity.ProcessStop {
		br, err := s.breakReasons.Validate(ctx, req.BreakCode)
		if err != nil {
			return nil, err
		}
		breakCode = &br.Code
	}

	latest, err := s.activities.FindLatest(ctx, req.OrderID, req.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("find latest activity: %w", err)
	}
	if !allowed(DeriveState(latest)) {
		return nil, ConflictError("%s", conflictMsg)
	}

	now := s.now()
	record := &entity.Activity{
		Code:         uuid.New().String(),
		WorkOrderID:  req.OrderID,
		EmployeeID:   req.EmployeeID,
		ResourceCode: strings.TrimSpace(req.ResourceCode),
		ProcessType:  processType,
		StartedAt:    now,
		BreakCode:    breakCode,
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		record.Notes = &notes
	}
	if err := s.activities.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}

	s.logger.Info("activity recorded",
		zap.String("process_type", processType),
		zap.Int64("work_order_id", req.OrderID),
		zap.Int64("employee_id", req.EmployeeID),
		zap.String("resource_code", record.ResourceCode),
	)
	return &ActionResult{State: DeriveState(record), Timestamp: now}, nil
}

func (s *ActivityService) validateAction(ctx context.Context, req ActionRequest) error {
	if req.OrderID <= 0 {
		return ValidationError("order id must be positive")
	}
	if req.EmployeeID <= 0 {
		return ValidationError("employee id must be positive")
	}
	if strings.TrimSpace(req.ResourceCode) == "" {
		return ValidationError("resource code is required")
	}
	if _, err := s.workOrders.FindByID(ctx, req.OrderID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ValidationError("work order %d not found", req.OrderID)
		}
		return fmt.Errorf("find work order: %w", err)
	}
	return nil
}

// GetHistory 订单作业历史，按时间升序
func (s *ActivityService) GetHistory(ctx context.Context, orderID int64, lang string) ([]ActivityHistoryItem, error) {
	if orderID <= 0 {
		return nil, ValidationError("order id must be positive")
	}
	records, err := s.activities.FindByWorkOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find activities: %w", err)
	}
	names, err := s.employeeNames(ctx, records)
	if err != nil {
		return nil, err
	}

	reasons := map[string]string{}
	items := make([]ActivityHistoryItem, 0, len(records))
	for _, r := range records {
		item := ActivityHistoryItem{
			Code:         r.Code,
			EmployeeID:   r.EmployeeID,
			EmployeeName: names[r.EmployeeID],
			ResourceCode: r.ResourceCode,
			ProcessType:  r.ProcessType,
			ProcessLabel: ProcessLabel(lang, r.ProcessType),
			StartedAt:    r.StartedAt,
			BreakCode:    r.BreakCode,
			Notes:        r.Notes,
		}
		if r.BreakCode != nil {
			name, ok := reasons[*r.BreakCode]
			if !ok {
				name = s.breakReasonName(ctx, *r.BreakCode)
				reasons[*r.BreakCode] = name
			}
			item.BreakReason = name
		}
		items = append(items, item)
	}
	return items, nil
}

// ListActiveWorkers 当前在订单上开始、继续或暂停中的员工
func (s *ActivityService) ListActiveWorkers(ctx context.Context, orderID int64, lang string) ([]ActiveWorker, error) {
	if orderID <= 0 {
		return nil, ValidationError("order id must be positive")
	}
	latest, err := s.activities.FindLatestPerEmployee(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find latest activities: %w", err)
	}
	names, err := s.employeeNames(ctx, latest)
	if err != nil {
		return nil, err
	}
	workers := []ActiveWorker{}
	for i := range latest {
		a := &latest[i]
		if !DeriveState(a).IsActive() {
			continue
		}
		workers = append(workers, ActiveWorker{
			EmployeeID:   a.EmployeeID,
			EmployeeName: names[a.EmployeeID],
			ResourceCode: a.ResourceCode,
			ProcessType:  a.ProcessType,
			ProcessLabel: ProcessLabel(lang, a.ProcessType),
			Since:        a.StartedAt,
		})
	}
	return workers, nil
}

func (s *ActivityService) employeeNames(ctx context.Context, records []entity.Activity) (map[int64]string, error) {
	seen := map[int64]bool{}
	var ids []int64
	for _, r := range records {
		if !seen[r.EmployeeID] {
			seen[r.EmployeeID] = true
			ids = append(ids, r.EmployeeID)
		}
	}
	names, err := s.employees.FindNames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find employee names: %w", err)
	}
	return names, nil
}

// 历史中的停机原因可能已停用，这里不做启用校验
func (s *ActivityService) breakReasonName(ctx context.Context, code string) string {
	br, err := s.breakReasons.repo.FindByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("break reason lookup failed", zap.String("code", code), zap.Error(err))
		}
		return ""
	}
	return br.Name
}
