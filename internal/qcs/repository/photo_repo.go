package repository

import (
	"context"

	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"gorm.io/gorm"
)

// PhotoRepository 照片仓库
type PhotoRepository struct {
	db *gorm.DB
}

func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// CreateBatch 批量创建照片记录
func (r *PhotoRepository) CreateBatch(ctx context.Context, photos []entity.Photo) error {
	if len(photos) == 0 {
		return nil
	}
	for i := range photos {
		if photos[i].ID == "" {
			photos[i].ID = newID()
		}
	}
	return r.db.WithContext(ctx).Create(&photos).Error
}

// FindByIssue 按上传时间排序
func (r *PhotoRepository) FindByIssue(ctx context.Context, issueID string) ([]entity.Photo, error) {
	photos := []entity.Photo{}
	err := r.db.WithContext(ctx).
		Where("issue_id = ?", issueID).
		Order("uploaded_at ASC").
		Find(&photos).Error
	return photos, err
}

// PathsByIssue 问题下所有照片的存储路径
func (r *PhotoRepository) PathsByIssue(ctx context.Context, issueID string) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).
		Model(&entity.Photo{}).
		Where("issue_id = ?", issueID).
		Pluck("file_path", &paths).Error
	return paths, err
}

// ExistsByPath 路径是否已登记
func (r *PhotoRepository) ExistsByPath(ctx context.Context, issueID, path string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Photo{}).
		Where("issue_id = ? AND file_path = ?", issueID, path).
		Count(&count).Error
	return count > 0, err
}
