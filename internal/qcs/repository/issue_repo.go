package repository

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const issueListColumns = `i.*,
	s.name AS supplier_name,
	p.name AS product_name,
	u.full_name AS created_by_name,
	(SELECT COUNT(*) FROM issue_photos ip WHERE ip.issue_id = i.id) AS photo_count`

// IssueRepository 问题仓库
type IssueRepository struct {
	db *gorm.DB
}

func NewIssueRepository(db *gorm.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// filtered 带筛选条件的基础查询，不含排序和分页
func (r *IssueRepository) filtered(ctx context.Context, f IssueFilter) *gorm.DB {
	query := r.db.WithContext(ctx).
		Table("issues AS i").
		Select(issueListColumns).
		Joins("LEFT JOIN suppliers s ON i.supplier_id = s.id").
		Joins("LEFT JOIN products p ON i.product_id = p.id").
		Joins("LEFT JOIN users u ON i.created_by = u.id")

	if exprs := f.Clauses(); len(exprs) > 0 {
		query = query.Clauses(clause.Where{Exprs: exprs})
	}
	return query.Session(&gorm.Session{})
}

// FindAll 分页查询问题列表，total由包裹同一查询得到
func (r *IssueRepository) FindAll(ctx context.Context, page, limit int, f IssueFilter) ([]entity.IssueListItem, int64, error) {
	base := r.filtered(ctx, f)

	var total int64
	if err := r.countOf(ctx, base, &total); err != nil {
		return nil, 0, err
	}

	items := []entity.IssueListItem{}
	if page < 1 || limit < 1 || page-1 > math.MaxInt/limit {
		return items, total, nil
	}
	offset := (page - 1) * limit
	err := base.
		Order("i.created_at DESC").
		Offset(offset).
		Limit(limit).
		Scan(&items).Error

	return items, total, err
}

// Count 统计符合条件的问题数量
func (r *IssueRepository) Count(ctx context.Context, f IssueFilter) (int64, error) {
	var total int64
	err := r.countOf(ctx, r.filtered(ctx, f), &total)
	return total, err
}

func (r *IssueRepository) countOf(ctx context.Context, base *gorm.DB, total *int64) error {
	return r.db.WithContext(ctx).Table("(?) AS filtered", base).Count(total).Error
}

// FindAllUnpaged 导出用，不分页
func (r *IssueRepository) FindAllUnpaged(ctx context.Context, f IssueFilter) ([]entity.IssueListItem, error) {
	items := []entity.IssueListItem{}
	err := r.filtered(ctx, f).Order("i.created_at DESC").Scan(&items).Error
	return items, err
}

// FindByID 根据ID查找问题
func (r *IssueRepository) FindByID(ctx context.Context, id string) (*entity.Issue, error) {
	var issue entity.Issue
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&issue).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &issue, nil
}

// FindByIDForUpdate 事务内加行锁读取，sqlite不支持FOR UPDATE
func (r *IssueRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Issue, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var issue entity.Issue
	if err := query.Where("id = ?", id).First(&issue).Error; err != nil {
		return nil, notFound(err)
	}
	return &issue, nil
}

// FindDetail 查询问题详情（不含照片、审计和评论）
func (r *IssueRepository) FindDetail(ctx context.Context, id string) (*entity.IssueDetail, error) {
	var details []entity.IssueDetail
	err := r.db.WithContext(ctx).
		Table("issues AS i").
		Select(`i.*,
			s.name AS supplier_name, s.code AS supplier_code,
			p.name AS product_name, p.item_no AS product_item_no,
			u.full_name AS created_by_name,
			a.full_name AS assigned_to_name`).
		Joins("LEFT JOIN suppliers s ON i.supplier_id = s.id").
		Joins("LEFT JOIN products p ON i.product_id = p.id").
		Joins("LEFT JOIN users u ON i.created_by = u.id").
		Joins("LEFT JOIN users a ON i.assigned_to = a.id").
		Where("i.id = ?", id).
		Limit(1).
		Scan(&details).Error
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, ErrNotFound
	}
	return &details[0], nil
}

// NextIssueSeq 取当前最大编号加一，空表从35001开始
func (r *IssueRepository) NextIssueSeq(ctx context.Context) (int, error) {
	var maxSeq int
	err := r.db.WithContext(ctx).
		Model(&entity.Issue{}).
		Select("COALESCE(MAX(issue_seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	if maxSeq <= 0 {
		maxSeq = entity.IssueNumberFloor
	}
	return maxSeq + 1, nil
}

// Create 创建问题，ID和编号为空时自动生成
func (r *IssueRepository) Create(ctx context.Context, issue *entity.Issue) error {
	if issue.ID == "" {
		issue.ID = newID()
	}
	if issue.IssueNumber == "" {
		issue.IssueNumber = strconv.Itoa(issue.IssueSeq)
	}
	return r.db.WithContext(ctx).Create(issue).Error
}

// UpdateStatus 更新状态
func (r *IssueRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.UpdateFields(ctx, id, map[string]interface{}{"status": status})
}

// MarkComplete 设置完成标记，不修改status
func (r *IssueRepository) MarkComplete(ctx context.Context, id string) error {
	return r.UpdateFields(ctx, id, map[string]interface{}{"is_complete": true})
}

// UpdateFields 更新字段并刷新updated_at
func (r *IssueRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&entity.Issue{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 删除问题及其照片、评论和审计记录
func (r *IssueRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("issue_id = ?", id).Delete(&entity.Photo{}).Error; err != nil {
		return err
	}
	if err := db.Where("issue_id = ?", id).Delete(&entity.Comment{}).Error; err != nil {
		return err
	}
	if err := db.Where("issue_id = ?", id).Delete(&entity.AuditTrailEntry{}).Error; err != nil {
		return err
	}
	result := db.Where("id = ?", id).Delete(&entity.Issue{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentIDs 最近创建的问题ID
func (r *IssueRepository) RecentIDs(ctx context.Context, n int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.Issue{}).
		Order("created_at DESC").
		Limit(n).
		Pluck("id", &ids).Error
	return ids, err
}
