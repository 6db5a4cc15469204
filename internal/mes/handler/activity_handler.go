package handler

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ActivityHandler struct {
	svc    *service.ActivityService
	logger *zap.Logger
}

func NewActivityHandler(svc *service.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{svc: svc, logger: logger}
}

// ActionBody 作业动作请求体，员工和机台可由终端令牌提供
type ActionBody struct {
	EmployeeID   int64  `json:"employee_id"`
	ResourceCode string `json:"resource_code"`
	BreakCode    string `json:"break_code"`
	Notes        string `json:"notes"`
}

// GetState GET /work-orders/:id/workers/:employeeId/state
func (h *ActivityHandler) GetState(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	empID, ok := pathID(c, "employeeId")
	if !ok {
		return
	}
	state, err := h.svc.GetWorkerState(c.Request.Context(), orderID, empID)
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, state)
}

func (h *ActivityHandler) Start(c *gin.Context) {
	h.action(c, h.svc.Start)
}

func (h *ActivityHandler) Stop(c *gin.Context) {
	h.action(c, h.svc.Stop)
}

func (h *ActivityHandler) Resume(c *gin.Context) {
	h.action(c, h.svc.Resume)
}

func (h *ActivityHandler) Finish(c *gin.Context) {
	h.action(c, h.svc.Finish)
}

func (h *ActivityHandler) action(c *gin.Context, fn func(context.Context, service.ActionRequest) (*service.ActionResult, error)) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body ActionBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}
	resource := body.ResourceCode
	if resource == "" {
		resource = c.GetString(middleware.ContextStation)
	}

	result, err := fn(c.Request.Context(), service.ActionRequest{
		OrderID:      orderID,
		EmployeeID:   employeeID(c, body.EmployeeID),
		ResourceCode: resource,
		BreakCode:    body.BreakCode,
		Notes:        body.Notes,
	})
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Created(c, result)
}

// History GET /work-orders/:id/activities
func (h *ActivityHandler) History(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := h.svc.GetHistory(c.Request.Context(), orderID, requestLang(c))
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// Export GET /work-orders/:id/activities/export
func (h *ActivityHandler) Export(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	f, filename, err := h.svc.ExportHistory(c.Request.Context(), orderID, requestLang(c))
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("write xlsx failed", zap.Int64("work_order_id", orderID), zap.Error(err))
	}
}

// ActiveWorkers GET /work-orders/:id/active-workers
func (h *ActivityHandler) ActiveWorkers(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	workers, err := h.svc.ListActiveWorkers(c.Request.Context(), orderID, requestLang(c))
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": workers})
}
