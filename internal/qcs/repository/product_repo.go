package repository

import (
	"context"

	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"gorm.io/gorm"
)

// ProductRepository 产品仓库
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindAll 查询产品，activeOnly为true时只返回启用的
func (r *ProductRepository) FindAll(ctx context.Context, activeOnly bool) ([]entity.Product, error) {
	items := []entity.Product{}
	query := r.db.WithContext(ctx).Model(&entity.Product{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("name ASC").Find(&items).Error
	return items, err
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	var product entity.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (r *ProductRepository) FindByItemNo(ctx context.Context, itemNo string) (*entity.Product, error) {
	var product entity.Product
	if err := r.db.WithContext(ctx).Where("item_no = ?", itemNo).First(&product).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (r *ProductRepository) Create(ctx context.Context, product *entity.Product) error {
	if product.ID == "" {
		product.ID = newID()
	}
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *ProductRepository) Update(ctx context.Context, product *entity.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// Deactivate 停用产品
func (r *ProductRepository) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&entity.Product{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
