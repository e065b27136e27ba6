package handler

import (
	"github.com/bitfantasy/qcs/internal/middleware"
	"github.com/bitfantasy/qcs/internal/qcs/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler 认证接口
type AuthHandler struct {
	svc    *service.AuthService
	logger *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 用户名密码登录
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, h.logger, err, "User not found")
		return
	}
	Success(c, res)
}

// Me 当前用户
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	Success(c, gin.H{"user": middleware.GetPrincipal(c)})
}

// Logout 登出，配置了Redis时吊销当前令牌
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.GetPrincipal(c)); err != nil {
		fail(c, h.logger, err, "User not found")
		return
	}
	Success(c, gin.H{"message": "Logged out successfully"})
}
