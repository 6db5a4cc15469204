package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers MES HTTP处理器集合
type Handlers struct {
	Activity    *ActivityHandler
	Production  *ProductionHandler
	BreakReason *BreakReasonHandler
}

func NewHandlers(services *service.Services, logger *zap.Logger) *Handlers {
	return &Handlers{
		Activity:    NewActivityHandler(services.Activity, logger),
		Production:  NewProductionHandler(services.Production, logger),
		BreakReason: NewBreakReasonHandler(services.BreakReason, logger),
	}
}

// RegisterRoutes 注册 /api/v1/mes 下的路由
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	workOrders := rg.Group("/work-orders/:id")
	{
		workOrders.GET("/workers/:employeeId/state", h.Activity.GetState)
		workOrders.POST("/activities/start", h.Activity.Start)
		workOrders.POST("/activities/stop", h.Activity.Stop)
		workOrders.POST("/activities/resume", h.Activity.Resume)
		workOrders.POST("/activities/finish", h.Activity.Finish)
		workOrders.GET("/activities", h.Activity.History)
		workOrders.GET("/activities/export", middleware.RequireRole(middleware.RoleSupervisor), h.Activity.Export)
		workOrders.GET("/active-workers", h.Activity.ActiveWorkers)

		workOrders.POST("/entries/validate", h.Production.Validate)
		workOrders.POST("/entries", h.Production.Report)
		workOrders.GET("/requirements", h.Production.Requirements)
	}

	breakReasons := rg.Group("/break-reasons")
	{
		breakReasons.GET("", h.BreakReason.List)
		breakReasons.GET("/search", h.BreakReason.Search)
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应，HTTP状态码 = code/100
func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

// ErrorWithData 带明细的错误响应
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// ServiceError 按业务错误类别输出
func ServiceError(c *gin.Context, logger *zap.Logger, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		logger.Error("unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
		InternalError(c, "internal server error")
		return
	}
	switch se.Kind {
	case service.KindValidation:
		BadRequest(c, se.Message)
	case service.KindNotFound:
		NotFound(c, se.Message)
	case service.KindConflict:
		Error(c, 40900, se.Message)
	case service.KindInsufficientStock:
		ErrorWithData(c, 42200, se.Message, gin.H{"shortages": se.Shortages})
	case service.KindIntegration:
		logger.Error("integration error", zap.String("path", c.FullPath()), zap.Error(err))
		Error(c, 50200, se.Message)
	default:
		logger.Error("service error", zap.String("path", c.FullPath()), zap.Error(err))
		InternalError(c, se.Message)
	}
}

// pathID 解析路径中的正整数ID
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// employeeID 请求未指定员工时取令牌中的员工
func employeeID(c *gin.Context, requested int64) int64 {
	if requested > 0 {
		return requested
	}
	return c.GetInt64(middleware.ContextEmployeeID)
}

// requestLang lang 参数优先，其次 Accept-Language
func requestLang(c *gin.Context) string {
	if lang := c.Query("lang"); lang != "" {
		return service.ResolveLang(lang)
	}
	return service.ResolveLang(c.GetHeader("Accept-Language"))
}
