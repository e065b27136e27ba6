package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/qcs/internal/qcs/access"
	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"github.com/bitfantasy/qcs/internal/qcs/repository"
)

// ReferenceService 供应商和产品基础数据
type ReferenceService struct {
	suppliers *repository.SupplierRepository
	products  *repository.ProductRepository
	gate      *access.Gate
}

func NewReferenceService(suppliers *repository.SupplierRepository, products *repository.ProductRepository, gate *access.Gate) *ReferenceService {
	return &ReferenceService{suppliers: suppliers, products: products, gate: gate}
}

// SupplierInput 创建/修改供应商
type SupplierInput struct {
	Name          string `json:"name"`
	Code          string `json:"code"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
}

func (in *SupplierInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	if in.Name == "" {
		return invalid("name", "Name is required")
	}
	if in.Code == "" {
		return invalid("code", "Code is required")
	}
	return nil
}

// ListSuppliers 启用的供应商，按名称排序
func (s *ReferenceService) ListSuppliers(ctx context.Context) ([]entity.Supplier, error) {
	return s.suppliers.FindAll(ctx, true)
}

// GetSupplier 已停用的视为不存在
func (s *ReferenceService) GetSupplier(ctx context.Context, id string) (*entity.Supplier, error) {
	supplier, err := s.suppliers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !supplier.IsActive {
		return nil, repository.ErrNotFound
	}
	return supplier, nil
}

func (s *ReferenceService) CreateSupplier(ctx context.Context, p *access.Principal, in *SupplierInput) (*entity.Supplier, error) {
	if err := s.gate.Require(p, access.ReferenceManage); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.supplierCodeFree(ctx, in.Code, ""); err != nil {
		return nil, err
	}

	supplier := &entity.Supplier{
		Name:          in.Name,
		Code:          in.Code,
		ContactPerson: in.ContactPerson,
		Email:         in.Email,
		Phone:         in.Phone,
		IsActive:      true,
	}
	if err := s.suppliers.Create(ctx, supplier); err != nil {
		return nil, fmt.Errorf("create supplier: %w", err)
	}
	return supplier, nil
}

func (s *ReferenceService) UpdateSupplier(ctx context.Context, p *access.Principal, id string, in *SupplierInput) (*entity.Supplier, error) {
	if err := s.gate.Require(p, access.ReferenceManage); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	supplier, err := s.suppliers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.supplierCodeFree(ctx, in.Code, id); err != nil {
		return nil, err
	}

	supplier.Name = in.Name
	supplier.Code = in.Code
	supplier.ContactPerson = in.ContactPerson
	supplier.Email = in.Email
	supplier.Phone = in.Phone
	if err := s.suppliers.Update(ctx, supplier); err != nil {
		return nil, fmt.Errorf("update supplier: %w", err)
	}
	return supplier, nil
}

// DeactivateSupplier 软删除
func (s *ReferenceService) DeactivateSupplier(ctx context.Context, p *access.Principal, id string) error {
	if err := s.gate.Require(p, access.ReferenceManage); err != nil {
		return err
	}
	return s.suppliers.Deactivate(ctx, id)
}

func (s *ReferenceService) supplierCodeFree(ctx context.Context, code, selfID string) error {
	existing, err := s.suppliers.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find supplier: %w", err)
	}
	if existing.ID != selfID {
		return invalid("code", "Supplier code already exists")
	}
	return nil
}

// ProductInput 创建/修改产品
type ProductInput struct {
	Name        string `json:"name"`
	ItemNo      string `json:"item_no"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (in *ProductInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.ItemNo = strings.TrimSpace(in.ItemNo)
	if in.Name == "" {
		return invalid("name", "Name is required")
	}
	if in.ItemNo == "" {
		return invalid("item_no", "Item number is required")
	}
	return nil
}

// ListProducts 启用的产品，按名称排序
func (s *ReferenceService) ListProducts(ctx context.Context) ([]entity.Product, error) {
	return s.products.FindAll(ctx, true)
}

func (s *ReferenceService) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, repository.ErrNotFound
	}
	return product, nil
}

func (s *ReferenceService) CreateProduct(ctx context.Context, p *access.Principal, in *ProductInput) (*entity.Product, error) {
	if err := s.gate.Require(p, access.ReferenceManage); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.itemNoFree(ctx, in.ItemNo, ""); err != nil {
		return nil, err
	}

	product := &entity.Product{
		Name:        in.Name,
		ItemNo:      in.ItemNo,
		Category:    in.Category,
		Description: in.Description,
		IsActive:    true,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

func (s *ReferenceService) UpdateProduct(ctx context.Context, p *access.Principal, id string, in *ProductInput) (*entity.Product, error) {
	if err := s.gate.Require(p, access.ReferenceManage); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.itemNoFree(ctx, in.ItemNo, id); err != nil {
		return nil, err
	}

	product.Name = in.Name
	product.ItemNo = in.ItemNo
	product.Category = in.Category
	product.Description = in.Description
	if err := s.products.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return product, nil
}

// DeactivateProduct 软删除
func (s *ReferenceService) DeactivateProduct(ctx context.Context, p *access.Principal, id string) error {
	if err := s.gate.Require(p, access.ReferenceManage); err != nil {
		return err
	}
	return s.products.Deactivate(ctx, id)
}

func (s *ReferenceService) itemNoFree(ctx context.Context, itemNo, selfID string) error {
	existing, err := s.products.FindByItemNo(ctx, itemNo)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find product: %w", err)
	}
	if existing.ID != selfID {
		return invalid("item_no", "Item number already exists")
	}
	return nil
}
