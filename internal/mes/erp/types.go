package erp

import "fmt"

// BaseTypeProductionOrder 生产订单单据类型
const BaseTypeProductionOrder = 202

// 收货交易类型
const (
	TransactionComplete = "C" // 完工入库，计入完工数量
	TransactionReject   = "R" // 报废入库，计入报废数量
)

// BatchLine 批次明细
type BatchLine struct {
	BatchNumber string  `json:"BatchNumber"`
	Quantity    float64 `json:"Quantity"`
}

// IssueLine 发料行
type IssueLine struct {
	ItemCode      string      `json:"ItemCode"`
	Quantity      float64     `json:"Quantity"`
	WarehouseCode string      `json:"WarehouseCode"`
	BaseType      int         `json:"BaseType"`
	BaseEntry     int64       `json:"BaseEntry"`
	BaseLine      int         `json:"BaseLine"`
	BatchNumbers  []BatchLine `json:"BatchNumbers,omitempty"` // 非批次管理物料不传
}

// MaterialIssue 生产发料单
type MaterialIssue struct {
	DocDate       string      `json:"DocDate"`
	Comments      string      `json:"Comments,omitempty"`
	Reference2    string      `json:"Reference2,omitempty"`
	DocumentLines []IssueLine `json:"DocumentLines"`
}

// ReceiptLine 收货行
type ReceiptLine struct {
	BaseType        int         `json:"BaseType"`
	BaseEntry       int64       `json:"BaseEntry"`
	Quantity        float64     `json:"Quantity"`
	WarehouseCode   string      `json:"WarehouseCode"`
	TransactionType string      `json:"TransactionType"`
	BatchNumbers    []BatchLine `json:"BatchNumbers,omitempty"`
}

// GoodsReceipt 成品收货单
type GoodsReceipt struct {
	DocDate       string        `json:"DocDate"`
	Comments      string        `json:"Comments,omitempty"`
	Reference2    string        `json:"Reference2,omitempty"`
	DocumentLines []ReceiptLine `json:"DocumentLines"`
}

// DocumentRef ERP 返回的单据引用
type DocumentRef struct {
	DocEntry int64 `json:"DocEntry"`
	DocNum   int64 `json:"DocNum"`
}

// Error ERP 接口错误
type Error struct {
	StatusCode int
	Code       int
	Message    string
	Path       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ERP API错误[%d/%d]: %s (path=%s)", e.StatusCode, e.Code, e.Message, e.Path)
}

// errorResponse ERP 统一错误结构
type errorResponse struct {
	Error struct {
		Code    int `json:"code"`
		Message struct {
			Lang  string `json:"lang"`
			Value string `json:"value"`
		} `json:"message"`
	} `json:"error"`
}
