package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories QCS仓库集合
type Repositories struct {
	db       *gorm.DB
	Issue    *IssueRepository
	Photo    *PhotoRepository
	Comment  *CommentRepository
	Audit    *AuditRepository
	Supplier *SupplierRepository
	Product  *ProductRepository
	User     *UserRepository
}

// NewRepositories 创建QCS仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:       db,
		Issue:    NewIssueRepository(db),
		Photo:    NewPhotoRepository(db),
		Comment:  NewCommentRepository(db),
		Audit:    NewAuditRepository(db),
		Supplier: NewSupplierRepository(db),
		Product:  NewProductRepository(db),
		User:     NewUserRepository(db),
	}
}

// Transaction 在同一事务内执行fn，fn返回错误时整体回滚
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// DB 底层连接，供健康检查使用
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

func newID() string {
	return uuid.New().String()[:32]
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
