package repository

import (
	"context"

	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"gorm.io/gorm"
)

// CommentRepository 评论仓库
type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create 创建评论
func (r *CommentRepository) Create(ctx context.Context, comment *entity.Comment) error {
	if comment.ID == "" {
		comment.ID = newID()
	}
	return r.db.WithContext(ctx).Create(comment).Error
}

// FindByIssue 最新的在前
func (r *CommentRepository) FindByIssue(ctx context.Context, issueID string) ([]entity.CommentView, error) {
	comments := []entity.CommentView{}
	err := r.db.WithContext(ctx).
		Table("issue_comments AS c").
		Select("c.*, u.full_name AS user_name").
		Joins("LEFT JOIN users u ON c.user_id = u.id").
		Where("c.issue_id = ?", issueID).
		Order("c.created_at DESC").
		Scan(&comments).Error
	return comments, err
}

// CountByIssue 评论数量
func (r *CommentRepository) CountByIssue(ctx context.Context, issueID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Comment{}).Where("issue_id = ?", issueID).Count(&count).Error
	return count, err
}
