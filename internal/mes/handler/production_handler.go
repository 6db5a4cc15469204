package handler

import (
	"strconv"

	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProductionHandler struct {
	svc    *service.ProductionService
	logger *zap.Logger
}

func NewProductionHandler(svc *service.ProductionService, logger *zap.Logger) *ProductionHandler {
	return &ProductionHandler{svc: svc, logger: logger}
}

// EntryBody 报工请求体
type EntryBody struct {
	AcceptedQty float64 `json:"accepted_qty"`
	RejectedQty float64 `json:"rejected_qty"`
	EmployeeID  int64   `json:"employee_id"`
	RequestKey  string  `json:"request_key"`
}

// Validate POST /work-orders/:id/entries/validate
func (h *ProductionHandler) Validate(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body EntryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	v, err := h.svc.ValidateEntry(c.Request.Context(), orderID, body.AcceptedQty, body.RejectedQty)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, v)
}

// Report POST /work-orders/:id/entries
// 请求键可放在 Idempotency-Key 头中
func (h *ProductionHandler) Report(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body EntryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	key := body.RequestKey
	if key == "" {
		key = c.GetHeader("Idempotency-Key")
	}

	result, err := h.svc.Report(c.Request.Context(), service.ReportRequest{
		OrderID:     orderID,
		AcceptedQty: body.AcceptedQty,
		RejectedQty: body.RejectedQty,
		EmployeeID:  employeeID(c, body.EmployeeID),
		RequestKey:  key,
	})
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Created(c, result)
}

// Requirements GET /work-orders/:id/requirements?qty=
func (h *ProductionHandler) Requirements(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	qty, err := strconv.ParseFloat(c.Query("qty"), 64)
	if err != nil {
		BadRequest(c, "qty must be a number")
		return
	}
	reqs, err := h.svc.GetRequirements(c.Request.Context(), orderID, qty)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": reqs})
}
