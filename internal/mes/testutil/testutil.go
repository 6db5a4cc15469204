package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/erp"
	"github.com/bitfantasy/nimo-mes/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "nimo-mes-test-secret"

// SetupTestDB 内存 SQLite，单连接保证同一个库
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// SetupRouter gin 测试路由
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup 带 JWT 认证的路由组
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken 终端令牌
func GenerateTestToken(employeeID int64, station string, roles ...string) string {
	if roles == nil {
		roles = []string{}
	}
	now := time.Now()
	claims := middleware.JWTClaims{
		UserID:     fmt.Sprintf("emp-%d", employeeID),
		Name:       "Test Operator",
		EmployeeID: employeeID,
		Station:    station,
		Roles:      roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "nimo-mes",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken 员工42在 CNC-01 上的操作员令牌
func DefaultTestToken() string {
	return GenerateTestToken(42, "CNC-01", "mes_operator")
}

// DoRequest 对测试路由发起请求
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse 解析 {code, message, data}
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedWorkOrder 生产订单及BOM
func SeedWorkOrder(t *testing.T, db *gorm.DB, wo *entity.WorkOrder, materials ...entity.WorkOrderMaterial) *entity.WorkOrder {
	t.Helper()
	if wo.Status == "" {
		wo.Status = entity.WOStatusReleased
	}
	if wo.DocNum == "" {
		wo.DocNum = fmt.Sprintf("WO-%d", wo.ID)
	}
	if wo.Warehouse == "" {
		wo.Warehouse = "FG01"
	}
	if err := db.Create(wo).Error; err != nil {
		t.Fatalf("Failed to seed work order: %v", err)
	}
	for i := range materials {
		materials[i].WorkOrderID = wo.ID
		if err := db.Create(&materials[i]).Error; err != nil {
			t.Fatalf("Failed to seed work order material: %v", err)
		}
	}
	return wo
}

// SeedEmployee 员工
func SeedEmployee(t *testing.T, db *gorm.DB, id int64, first, last string) *entity.Employee {
	t.Helper()
	e := &entity.Employee{ID: id, FirstName: first, LastName: last, Active: true}
	if err := db.Create(e).Error; err != nil {
		t.Fatalf("Failed to seed employee: %v", err)
	}
	return e
}

// SeedBreakReason 停机原因；active 的零值会被列默认值覆盖，需单独更新
func SeedBreakReason(t *testing.T, db *gorm.DB, code, name string, active bool) *entity.BreakReason {
	t.Helper()
	br := &entity.BreakReason{Code: code, Name: name, Active: true}
	if err := db.Create(br).Error; err != nil {
		t.Fatalf("Failed to seed break reason: %v", err)
	}
	if !active {
		if err := db.Model(br).Update("active", false).Error; err != nil {
			t.Fatalf("Failed to deactivate break reason: %v", err)
		}
		br.Active = false
	}
	return br
}

// SeedStock 仓库库存
func SeedStock(t *testing.T, db *gorm.DB, itemCode, warehouse string, onHand, committed float64) {
	t.Helper()
	s := &entity.ItemStock{ItemCode: itemCode, Warehouse: warehouse, OnHand: onHand, Committed: committed}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("Failed to seed stock: %v", err)
	}
}

// SeedBatch 批次库存
func SeedBatch(t *testing.T, db *gorm.DB, b *entity.StockBatch) {
	t.Helper()
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("Failed to seed batch: %v", err)
	}
}

// StubERP 记录单据的ERP替身
type StubERP struct {
	mu       sync.Mutex
	Issues   []*erp.MaterialIssue
	Receipts []*erp.GoodsReceipt
	Keys     []string
	Err      error
	next     int64
}

func (s *StubERP) CreateMaterialIssue(_ context.Context, doc *erp.MaterialIssue, key string) (*erp.DocumentRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.Issues = append(s.Issues, doc)
	return s.ref(key), nil
}

func (s *StubERP) CreateGoodsReceipt(_ context.Context, doc *erp.GoodsReceipt, key string) (*erp.DocumentRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.Receipts = append(s.Receipts, doc)
	return s.ref(key), nil
}

func (s *StubERP) ref(key string) *erp.DocumentRef {
	s.Keys = append(s.Keys, key)
	s.next++
	return &erp.DocumentRef{DocEntry: 100 + s.next, DocNum: 9000 + s.next}
}
