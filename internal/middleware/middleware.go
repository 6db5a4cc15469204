package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ContextRequestID  = "request_id"
	ContextUserID     = "user_id"
	ContextUserName   = "user_name"
	ContextEmployeeID = "employee_id"
	ContextRoles      = "roles"
	ContextStation    = "station"

	RoleAdmin      = "mes_admin"
	RoleSupervisor = "mes_supervisor"
)

// Logger 访问日志
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(ContextRequestID)),
		}
		if uid := c.GetString(ContextUserID); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}
		if empID := c.GetInt64(ContextEmployeeID); empID > 0 {
			fields = append(fields, zap.Int64("employee_id", empID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("Server error", fields...)
		case status >= 400:
			logger.Warn("Client error", fields...)
		default:
			logger.Info("Request", fields...)
		}
	}
}

// CORS 跨域，车间终端和看板走不同域名
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Accept-Language, X-Request-ID, Idempotency-Key")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestID 请求ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// JWTClaims 车间终端令牌
// EmployeeID 为终端登录的员工，报工和作业请求未指定员工时使用
type JWTClaims struct {
	UserID     string   `json:"uid"`
	Name       string   `json:"name"`
	EmployeeID int64    `json:"employee_id"`
	Station    string   `json:"station"`
	Roles      []string `json:"roles"`
	jwt.RegisteredClaims
}

func unauthorized(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    code,
		"message": message,
	})
}

// JWTAuth JWT认证
func JWTAuth(secret string) gin.HandlerFunc {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}
	return func(c *gin.Context) {
		tokenString := ""
		if parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
		if tokenString == "" {
			unauthorized(c, 40100, "Authorization is required")
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			unauthorized(c, 40102, "Invalid or expired token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserName, claims.Name)
		c.Set(ContextEmployeeID, claims.EmployeeID)
		c.Set(ContextStation, claims.Station)
		c.Set(ContextRoles, claims.Roles)
		c.Set("claims", claims)
		c.Next()
	}
}

// RequireRole 角色检查，mes_admin 拥有全部角色
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, _ := c.Get(ContextRoles)
		userRoles, _ := roles.([]string)
		for _, r := range userRoles {
			if r == role || r == RoleAdmin {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code":    40300,
			"message": "Role required: " + role,
		})
	}
}
