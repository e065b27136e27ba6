package handler

import (
	"github.com/bitfantasy/qcs/internal/middleware"
	"github.com/bitfantasy/qcs/internal/qcs/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	supplierNotFound = "Supplier not found"
	productNotFound  = "Product not found"
)

// ReferenceHandler 供应商和产品接口
type ReferenceHandler struct {
	svc    *service.ReferenceService
	logger *zap.Logger
}

func NewReferenceHandler(svc *service.ReferenceService, logger *zap.Logger) *ReferenceHandler {
	return &ReferenceHandler{svc: svc, logger: logger}
}

func (h *ReferenceHandler) ListSuppliers(c *gin.Context) {
	items, err := h.svc.ListSuppliers(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err, supplierNotFound)
		return
	}
	Success(c, items)
}

func (h *ReferenceHandler) GetSupplier(c *gin.Context) {
	item, err := h.svc.GetSupplier(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err, supplierNotFound)
		return
	}
	Success(c, item)
}

func (h *ReferenceHandler) CreateSupplier(c *gin.Context) {
	var in service.SupplierInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	item, err := h.svc.CreateSupplier(c.Request.Context(), middleware.GetPrincipal(c), &in)
	if err != nil {
		fail(c, h.logger, err, supplierNotFound)
		return
	}
	Created(c, item)
}

func (h *ReferenceHandler) UpdateSupplier(c *gin.Context) {
	var in service.SupplierInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	item, err := h.svc.UpdateSupplier(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id"), &in)
	if err != nil {
		fail(c, h.logger, err, supplierNotFound)
		return
	}
	Success(c, item)
}

// DeactivateSupplier 停用供应商
func (h *ReferenceHandler) DeactivateSupplier(c *gin.Context) {
	if err := h.svc.DeactivateSupplier(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id")); err != nil {
		fail(c, h.logger, err, supplierNotFound)
		return
	}
	Success(c, gin.H{"message": "Supplier deactivated"})
}

func (h *ReferenceHandler) ListProducts(c *gin.Context) {
	items, err := h.svc.ListProducts(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err, productNotFound)
		return
	}
	Success(c, items)
}

func (h *ReferenceHandler) GetProduct(c *gin.Context) {
	item, err := h.svc.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err, productNotFound)
		return
	}
	Success(c, item)
}

func (h *ReferenceHandler) CreateProduct(c *gin.Context) {
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	item, err := h.svc.CreateProduct(c.Request.Context(), middleware.GetPrincipal(c), &in)
	if err != nil {
		fail(c, h.logger, err, productNotFound)
		return
	}
	Created(c, item)
}

func (h *ReferenceHandler) UpdateProduct(c *gin.Context) {
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	item, err := h.svc.UpdateProduct(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id"), &in)
	if err != nil {
		fail(c, h.logger, err, productNotFound)
		return
	}
	Success(c, item)
}

// DeactivateProduct 停用产品
func (h *ReferenceHandler) DeactivateProduct(c *gin.Context) {
	if err := h.svc.DeactivateProduct(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id")); err != nil {
		fail(c, h.logger, err, productNotFound)
		return
	}
	Success(c, gin.H{"message": "Product deactivated"})
}
