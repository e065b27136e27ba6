package handler

import (
	"github.com/bitfantasy/qcs/internal/middleware"
	"github.com/bitfantasy/qcs/internal/qcs/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler 用户管理接口
type UserHandler struct {
	svc    *service.UserService
	logger *zap.Logger
}

func NewUserHandler(svc *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

// List GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.List(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		fail(c, h.logger, err, "User not found")
		return
	}
	Success(c, users)
}

// Create POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var in service.CreateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	user, err := h.svc.Create(c.Request.Context(), middleware.GetPrincipal(c), &in)
	if err != nil {
		fail(c, h.logger, err, "User not found")
		return
	}
	Created(c, user)
}

// Deactivate DELETE /api/users/:id
func (h *UserHandler) Deactivate(c *gin.Context) {
	if err := h.svc.Deactivate(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id")); err != nil {
		fail(c, h.logger, err, "User not found")
		return
	}
	Success(c, gin.H{"message": "User deactivated"})
}
