package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/metrics"
	"go.uber.org/zap"
)

const (
	pathLogin          = "/Login"
	pathMaterialIssue  = "/InventoryGenExits"
	pathGoodsReceipt   = "/InventoryGenEntries"
	sessionCookieName  = "B1SESSION"
	idempotencyHeader  = "Idempotency-Key"
	defaultHTTPTimeout = 30 * time.Second
)

// Config ERP 连接配置
type Config struct {
	BaseURL   string
	CompanyDB string
	Username  string
	Password  string
	Timeout   time.Duration
}

// Client ERP 单据接口客户端
// 会话令牌缓存在内存中，过期前60秒刷新
type Client struct {
	cfg           Config
	session       string
	sessionExpire time.Time
	mu            sync.RWMutex
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewClient 创建 ERP 客户端
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("erp"),
	}
}

// CreateMaterialIssue 创建生产发料单
func (c *Client) CreateMaterialIssue(ctx context.Context, doc *MaterialIssue, idempotencyKey string) (*DocumentRef, error) {
	var ref DocumentRef
	if err := c.post(ctx, "material_issue", pathMaterialIssue, doc, idempotencyKey, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// CreateGoodsReceipt 创建成品收货单
func (c *Client) CreateGoodsReceipt(ctx context.Context, doc *GoodsReceipt, idempotencyKey string) (*DocumentRef, error) {
	var ref DocumentRef
	if err := c.post(ctx, "goods_receipt", pathGoodsReceipt, doc, idempotencyKey, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// sessionID 获取会话令牌（双重检查）
func (c *Client) sessionID(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.session != "" && time.Now().Before(c.sessionExpire) {
		s := c.session
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != "" && time.Now().Before(c.sessionExpire) {
		return c.session, nil
	}

	body, _ := json.Marshal(map[string]string{
		"CompanyDB": c.cfg.CompanyDB,
		"UserName":  c.cfg.Username,
		"Password":  c.cfg.Password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+pathLogin, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("创建登录请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ERP登录失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取登录响应失败: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", parseError(resp.StatusCode, pathLogin, respBody)
	}

	var result struct {
		SessionID      string `json:"SessionId"`
		SessionTimeout int    `json:"SessionTimeout"` // 分钟
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("解析登录响应失败: %w", err)
	}
	if result.SessionID == "" {
		return "", fmt.Errorf("ERP登录响应缺少SessionId")
	}

	c.session = result.SessionID
	c.sessionExpire = time.Now().Add(time.Duration(result.SessionTimeout)*time.Minute - 60*time.Second)
	return c.session, nil
}

func (c *Client) invalidateSession() {
	c.mu.Lock()
	c.session = ""
	c.sessionExpire = time.Time{}
	c.mu.Unlock()
}

// post 执行单据创建请求，不做自动重试
func (c *Client) post(ctx context.Context, document, path string, body interface{}, idempotencyKey string, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.ObserveERPRequest(document, status, time.Since(start).Seconds())
	}()

	session, err := c.sessionID(ctx)
	if err != nil {
		return fmt.Errorf("获取ERP会话失败: %w", err)
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session})
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateSession()
	}
	if resp.StatusCode >= 300 {
		apiErr := parseError(resp.StatusCode, path, respBody)
		c.logger.Warn("ERP rejected document",
			zap.String("path", path),
			zap.String("idempotency_key", idempotencyKey),
			zap.Int("status", resp.StatusCode),
			zap.Error(apiErr),
		)
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("解析响应体失败: %w", err)
		}
	}
	return nil
}

func parseError(status int, path string, body []byte) *Error {
	apiErr := &Error{StatusCode: status, Path: path, Message: http.StatusText(status)}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message.Value != "" {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message.Value
	}
	return apiErr
}
