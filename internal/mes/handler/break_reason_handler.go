package handler

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BreakReasonHandler struct {
	svc    *service.BreakReasonService
	logger *zap.Logger
}

func NewBreakReasonHandler(svc *service.BreakReasonService, logger *zap.Logger) *BreakReasonHandler {
	return &BreakReasonHandler{svc: svc, logger: logger}
}

func (h *BreakReasonHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// Search GET /break-reasons/search?q=xxx
func (h *BreakReasonHandler) Search(c *gin.Context) {
	items, err := h.svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		ServiceError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}
