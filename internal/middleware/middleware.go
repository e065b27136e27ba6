package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/qcs/internal/metrics"
	"github.com/bitfantasy/qcs/internal/qcs/access"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const principalKey = "principal"

// Logger 日志中间件
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", redactToken(query)),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", latency),
			zap.String("request_id", c.GetString("request_id")),
		}

		if userID := c.GetString("user_id"); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}

		if status >= 500 {
			logger.Error("Server error", fields...)
		} else if status >= 400 {
			logger.Warn("Client error", fields...)
		} else {
			logger.Info("Request", fields...)
		}
	}
}

// redactToken SSE的token参数不写入日志
func redactToken(query string) string {
	if !strings.Contains(query, "token=") {
		return query
	}
	parts := strings.Split(query, "&")
	for i, p := range parts {
		if strings.HasPrefix(p, "token=") {
			parts[i] = "token=***"
		}
	}
	return strings.Join(parts, "&")
}

// CORS 跨域中间件，origin为空时允许所有来源
func CORS(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID 请求ID中间件
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// Metrics 请求计数和耗时，按路由模板聚合
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

// Authenticator 校验访问令牌
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*access.Principal, error)
}

// JWTAuth JWT认证中间件
func JWTAuth(auth Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		// 先尝试从 Authorization header 获取
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = strings.TrimSpace(parts[1])
			}
		}

		// 回退到 query param（SSE 等场景使用）
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		p, err := auth.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			code, message := AuthErrorCode(err)
			if code == 0 {
				logger.Error("authentication failed",
					zap.String("request_id", c.GetString("request_id")),
					zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    50000,
					"message": "Internal server error",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    code,
				"message": message,
			})
			return
		}

		c.Set(principalKey, p)
		c.Set("user_id", p.UserID)
		c.Set("user_name", p.Username)
		c.Set("role", p.Role)
		c.Request = c.Request.WithContext(access.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// AuthErrorCode 认证错误对应的响应码，非认证错误返回0
func AuthErrorCode(err error) (int, string) {
	switch {
	case errors.Is(err, access.ErrMissingToken):
		return 40100, "Authorization is required"
	case errors.Is(err, access.ErrTokenExpired):
		return 40104, "Token has expired"
	case errors.Is(err, access.ErrTokenRevoked):
		return 40105, "Token has been revoked"
	case errors.Is(err, access.ErrInactiveUser):
		return 40106, "User not found or inactive"
	case errors.Is(err, access.ErrInvalidToken):
		return 40102, "Invalid or expired token"
	case errors.Is(err, access.ErrUnauthenticated):
		return 40100, "Authorization is required"
	}
	return 0, ""
}

// GetPrincipal 取出当前请求的主体，未认证时返回nil
func GetPrincipal(c *gin.Context) *access.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*access.Principal); ok {
			return p
		}
	}
	return access.FromContext(c.Request.Context())
}

// RequireCapability 能力检查中间件
func RequireCapability(gate *access.Gate, capability access.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch gate.Check(GetPrincipal(c), capability) {
		case access.Allowed:
			c.Next()
		case access.Unauthenticated:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    40100,
				"message": "Authorization is required",
			})
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    40300,
				"message": "Permission denied: " + string(capability),
			})
		}
	}
}
