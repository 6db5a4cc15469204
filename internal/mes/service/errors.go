package service

import (
	"errors"
	"fmt"
)

// ErrorKind 业务错误类别
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindInsufficientStock
	KindIntegration
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindIntegration:
		return "integration"
	}
	return "internal"
}

// ShortageItem 缺料明细
type ShortageItem struct {
	ItemCode  string  `json:"item_code"`
	ItemName  string  `json:"item_name"`
	Required  float64 `json:"required"`
	Available float64 `json:"available"`
	Shortage  float64 `json:"shortage"`
	Warehouse string  `json:"warehouse"`
}

// Error 业务错误，Message 面向用户，Err 仅用于日志
type Error struct {
	Kind      ErrorKind
	Message   string
	Shortages []ShortageItem
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError 结构化缺料错误
func InsufficientStockError(shortages []ShortageItem) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock for %d material(s)", len(shortages)),
		Shortages: shortages,
	}
}

// IntegrationError ERP 或基础设施错误，对外只给通用提示
func IntegrationError(message string, cause error) *Error {
	return &Error{Kind: KindIntegration, Message: message, Err: cause}
}

// KindOf 取错误类别，非业务错误视为内部错误
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ShortagesOf 取缺料明细
func ShortagesOf(err error) []ShortageItem {
	var e *Error
	if errors.As(err, &e) {
		return e.Shortages
	}
	return nil
}

// resultLabel 指标的结果标签
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
