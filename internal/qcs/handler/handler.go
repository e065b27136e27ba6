package handler

import (
	"errors"

	"github.com/bitfantasy/qcs/internal/middleware"
	"github.com/bitfantasy/qcs/internal/qcs/access"
	"github.com/bitfantasy/qcs/internal/qcs/repository"
	"github.com/bitfantasy/qcs/internal/qcs/service"
	"github.com/bitfantasy/qcs/internal/qcs/sse"
	"github.com/bitfantasy/qcs/internal/qcs/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	Auth      *AuthHandler
	Issue     *IssueHandler
	Reference *ReferenceHandler
	User      *UserHandler
	Upload    *UploadHandler
	SSE       *SSEHandler

	authn  middleware.Authenticator
	gate   *access.Gate
	logger *zap.Logger
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, store storage.Storage, hub *sse.Hub, gate *access.Gate, logger *zap.Logger) *Handlers {
	return &Handlers{
		Auth:      NewAuthHandler(svc.Auth, logger),
		Issue:     NewIssueHandler(svc.Issue, svc.Export, logger),
		Reference: NewReferenceHandler(svc.Reference, logger),
		User:      NewUserHandler(svc.User, logger),
		Upload:    NewUploadHandler(store, logger),
		SSE:       NewSSEHandler(hub),
		authn:     svc.Auth,
		gate:      gate,
		logger:    logger,
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

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// fail 把服务层错误映射为响应，内部错误只记录日志不返回细节
func fail(c *gin.Context, logger *zap.Logger, err error, notFound string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		BadRequest(c, verr.Message)
	case errors.Is(err, service.ErrValidation):
		BadRequest(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		Error(c, 40101, "Invalid credentials")
	case errors.Is(err, access.ErrUnauthenticated):
		code, message := middleware.AuthErrorCode(err)
		Error(c, code, message)
	case errors.Is(err, access.ErrForbidden):
		Forbidden(c, "Insufficient permissions")
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, notFound)
	default:
		logger.Error("request failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		InternalError(c, "Internal server error")
	}
}
