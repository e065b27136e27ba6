package repository

import (
	"context"

	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"gorm.io/gorm"
)

// AuditRepository 审计记录仓库，只提供追加和查询
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record 追加一条审计记录
func (r *AuditRepository) Record(ctx context.Context, issueID, userID, action string, oldStatus, newStatus, notes *string) error {
	entry := &entity.AuditTrailEntry{
		ID:        newID(),
		IssueID:   issueID,
		UserID:    userID,
		Action:    action,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Notes:     notes,
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByIssue 最新的在前
func (r *AuditRepository) FindByIssue(ctx context.Context, issueID string) ([]entity.AuditTrailView, error) {
	entries := []entity.AuditTrailView{}
	err := r.db.WithContext(ctx).
		Table("audit_trail AS a").
		Select("a.*, u.full_name AS user_name").
		Joins("LEFT JOIN users u ON a.user_id = u.id").
		Where("a.issue_id = ?", issueID).
		Order("a.created_at DESC").
		Scan(&entries).Error
	return entries, err
}

// CountByIssue 审计记录数量，可按动作过滤
func (r *AuditRepository) CountByIssue(ctx context.Context, issueID, action string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.AuditTrailEntry{}).Where("issue_id = ?", issueID)
	if action != "" {
		query = query.Where("action = ?", action)
	}
	err := query.Count(&count).Error
	return count, err
}
