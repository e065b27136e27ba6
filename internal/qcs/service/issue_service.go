package service

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/qcs/internal/metrics"
	"github.com/bitfantasy/qcs/internal/qcs/access"
	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"github.com/bitfantasy/qcs/internal/qcs/repository"
	"github.com/bitfantasy/qcs/internal/qcs/storage"
	"go.uber.org/zap"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 1000
)

// Notifier 问题变更通知（SSE）
type Notifier interface {
	PublishIssueUpdate(issueID, issueNumber, action string)
}

// IssueService 问题查询与生命周期管理
type IssueService struct {
	repos    *repository.Repositories
	store    storage.Storage
	gate     *access.Gate
	notifier Notifier
	limits   UploadLimits
	logger   *zap.Logger
}

func NewIssueService(repos *repository.Repositories, store storage.Storage, gate *access.Gate, limits UploadLimits, logger *zap.Logger) *IssueService {
	return &IssueService{
		repos:  repos,
		store:  store,
		gate:   gate,
		limits: limits,
		logger: logger,
	}
}

// SetNotifier 注入变更通知
func (s *IssueService) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *IssueService) committed(issueID, issueNumber, action string) {
	metrics.IssueEvent(action)
	if s.notifier != nil {
		s.notifier.PublishIssueUpdate(issueID, issueNumber, action)
	}
}

// ListQuery 列表查询参数
type ListQuery struct {
	Filter repository.IssueFilter
	Page   int
	Limit  int
}

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// IssuePage 问题列表响应
type IssuePage struct {
	Issues     []entity.IssueListItem `json:"issues"`
	Pagination Pagination             `json:"pagination"`
}

// ParseListQuery 解析列表参数，page/limit非法时使用默认值
func ParseListQuery(q url.Values) (ListQuery, error) {
	f, err := parseFilter(q)
	if err != nil {
		return ListQuery{}, err
	}
	f.ShowCompleted = isTruthy(q.Get("show_completed"))

	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	rawLimit := q.Get("limit")
	if rawLimit == "" {
		rawLimit = q.Get("page_size")
	}
	limit, err := strconv.Atoi(rawLimit)
	if err != nil || limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	return ListQuery{Filter: f, Page: page, Limit: limit}, nil
}

// ParseExportFilter 导出默认包含已完成的问题，show_completed显式为假时排除
func ParseExportFilter(q url.Values) (repository.IssueFilter, error) {
	f, err := parseFilter(q)
	if err != nil {
		return f, err
	}
	f.ShowCompleted = true
	if v := q.Get("show_completed"); v != "" && !isTruthy(v) {
		f.ShowCompleted = false
	}
	return f, nil
}

func parseFilter(q url.Values) (repository.IssueFilter, error) {
	f := repository.IssueFilter{
		Status:     strings.TrimSpace(q.Get("status")),
		CheckType:  strings.TrimSpace(q.Get("check_type")),
		SupplierID: strings.TrimSpace(q.Get("supplier_id")),
		ProductID:  strings.TrimSpace(q.Get("product_id")),
		StartDate:  strings.TrimSpace(q.Get("start_date")),
		EndDate:    strings.TrimSpace(q.Get("end_date")),
		DateField:  strings.ToLower(strings.TrimSpace(q.Get("date_field"))),
	}

	if f.CheckType != "" && !entity.IsValidCheckType(f.CheckType) {
		return f, invalid("check_type", "must be vehicle or product")
	}
	switch f.DateField {
	case "":
		f.DateField = repository.DateFieldCreated
	case repository.DateFieldCreated, repository.DateFieldUpdated:
	default:
		return f, invalid("date_field", "must be created or updated")
	}
	if f.StartDate != "" {
		if _, err := time.Parse("2006-01-02", f.StartDate); err != nil {
			return f, invalid("start_date", "must be YYYY-MM-DD")
		}
	}
	if f.EndDate != "" {
		if _, err := time.Parse("2006-01-02", f.EndDate); err != nil {
			return f, invalid("end_date", "must be YYYY-MM-DD")
		}
	}
	return f, nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// List 分页查询问题
func (s *IssueService) List(ctx context.Context, p *access.Principal, q ListQuery) (*IssuePage, error) {
	if err := s.gate.Require(p, access.IssueRead); err != nil {
		return nil, err
	}

	items, total, err := s.repos.Issue.FindAll(ctx, q.Page, q.Limit, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	return &IssuePage{
		Issues: items,
		Pagination: Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(q.Limit))),
		},
	}, nil
}

// Stats 看板统计，与列表使用同一计数路径
func (s *IssueService) Stats(ctx context.Context, p *access.Principal) (*entity.IssueStats, error) {
	if err := s.gate.Require(p, access.IssueRead); err != nil {
		return nil, err
	}

	var stats entity.IssueStats
	counts := []struct {
		filter repository.IssueFilter
		dst    *int64
	}{
		{repository.IssueFilter{}, &stats.Open},
		{repository.IssueFilter{Status: entity.IssueStatusAwaitingConfirmation}, &stats.AwaitingConfirmation},
		{repository.IssueFilter{Status: entity.StatusFilterResolvedOrComplete}, &stats.ResolvedOrComplete},
	}
	for _, c := range counts {
		n, err := s.repos.Issue.Count(ctx, c.filter)
		if err != nil {
			return nil, fmt.Errorf("count issues: %w", err)
		}
		*c.dst = n
	}
	return &stats, nil
}

// Get 问题详情，包含照片、审计记录和评论
func (s *IssueService) Get(ctx context.Context, p *access.Principal, id string) (*entity.IssueDetail, error) {
	if err := s.gate.Require(p, access.IssueRead); err != nil {
		return nil, err
	}

	detail, err := s.repos.Issue.FindDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	if detail.Photos, err = s.repos.Photo.FindByIssue(ctx, id); err != nil {
		return nil, fmt.Errorf("load photos: %w", err)
	}
	for i := range detail.Photos {
		detail.Photos[i].URL = storage.PublicPath(detail.Photos[i].FilePath)
	}
	if detail.AuditTrail, err = s.repos.Audit.FindByIssue(ctx, id); err != nil {
		return nil, fmt.Errorf("load audit trail: %w", err)
	}
	if detail.Comments, err = s.repos.Comment.FindByIssue(ctx, id); err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	return detail, nil
}

// CreateIssueInput 创建问题请求，数字字段以表单字符串传入
type CreateIssueInput struct {
	CheckType          string `form:"check_type" json:"check_type"`
	Haulier            string `form:"haulier" json:"haulier"`
	LorryRegistration  string `form:"lorry_registration" json:"lorry_registration"`
	VehicleOrigin      string `form:"vehicle_origin" json:"vehicle_origin"`
	SupplierID         string `form:"supplier_id" json:"supplier_id"`
	ProductID          string `form:"product_id" json:"product_id"`
	Origin             string `form:"origin" json:"origin"`
	LotNumber          string `form:"lot_number" json:"lot_number"`
	ItemNo             string `form:"item_no" json:"item_no"`
	AffectedItem       string `form:"affected_item" json:"affected_item"`
	PalletsAffected    string `form:"pallets_affected" json:"pallets_affected"`
	PalletType         string `form:"pallet_type" json:"pallet_type"`
	TotalCasesAffected string `form:"total_cases_affected" json:"total_cases_affected"`
	PiecesPerUnit      string `form:"pieces_per_unit" json:"pieces_per_unit"`
	QuantityType       string `form:"quantity_type" json:"quantity_type"`
	IssueType          string `form:"issue_type" json:"issue_type"`
	Description        string `form:"description" json:"description"`
	Notes              string `form:"notes" json:"notes"`
}

// CreateResult 创建结果
type CreateResult struct {
	ID          string `json:"id"`
	IssueNumber string `json:"issue_number"`
}

func (in *CreateIssueInput) toIssue(createdBy string) (*entity.Issue, error) {
	checkType := strings.TrimSpace(in.CheckType)
	if !entity.IsValidCheckType(checkType) {
		return nil, invalid("check_type", "must be vehicle or product")
	}

	issue := &entity.Issue{
		CheckType:         checkType,
		Status:            entity.IssueStatusPending,
		IsComplete:        false,
		Haulier:           in.Haulier,
		LorryRegistration: in.LorryRegistration,
		VehicleOrigin:     in.VehicleOrigin,
		SupplierID:        optionalString(in.SupplierID),
		ProductID:         optionalString(in.ProductID),
		Origin:            in.Origin,
		LotNumber:         in.LotNumber,
		ItemNo:            in.ItemNo,
		AffectedItem:      in.AffectedItem,
		PalletType:        in.PalletType,
		QuantityType:      in.QuantityType,
		IssueType:         in.IssueType,
		Description:       in.Description,
		Notes:             in.Notes,
		CreatedBy:         createdBy,
	}

	var err error
	if issue.PalletsAffected, err = parseOptionalInt("pallets_affected", in.PalletsAffected); err != nil {
		return nil, err
	}
	if issue.TotalCasesAffected, err = parseOptionalInt("total_cases_affected", in.TotalCasesAffected); err != nil {
		return nil, err
	}
	if issue.PiecesPerUnit, err = parseOptionalInt("pieces_per_unit", in.PiecesPerUnit); err != nil {
		return nil, err
	}
	return issue, nil
}

// Create 创建问题：编号分配、问题、照片和审计记录在同一事务内
func (s *IssueService) Create(ctx context.Context, p *access.Principal, in *CreateIssueInput, uploads []Upload) (*CreateResult, error) {
	if err := s.gate.Require(p, access.IssueCreate); err != nil {
		return nil, err
	}

	issue, err := in.toIssue(p.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.limits.validateUploads(uploads); err != nil {
		return nil, err
	}

	photos, err := s.saveUploads(ctx, uploads, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("save photos: %w", err)
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		seq, err := tx.Issue.NextIssueSeq(ctx)
		if err != nil {
			return err
		}
		issue.IssueSeq = seq
		issue.IssueNumber = strconv.Itoa(seq)
		if err := tx.Issue.Create(ctx, issue); err != nil {
			return err
		}

		for i := range photos {
			photos[i].IssueID = issue.ID
		}
		if err := tx.Photo.CreateBatch(ctx, photos); err != nil {
			return err
		}

		return tx.Audit.Record(ctx, issue.ID, p.UserID, entity.AuditActionCreated,
			nil, strPtr(entity.IssueStatusPending), strPtr("Issue created"))
	})
	if err != nil {
		s.removeFiles(ctx, photos)
		return nil, fmt.Errorf("create issue: %w", err)
	}

	s.committed(issue.ID, issue.IssueNumber, entity.AuditActionCreated)
	s.logger.Info("issue created",
		zap.String("issue_id", issue.ID),
		zap.String("issue_number", issue.IssueNumber),
		zap.Int("photos", len(photos)),
		zap.String("user_id", p.UserID))

	return &CreateResult{ID: issue.ID, IssueNumber: issue.IssueNumber}, nil
}

// ChangeStatus 修改状态，只校验目标状态是否合法，不限制流转顺序
func (s *IssueService) ChangeStatus(ctx context.Context, p *access.Principal, id, status, notes string) error {
	if err := s.gate.Require(p, access.IssueManage); err != nil {
		return err
	}
	if !entity.IsValidStatus(status) {
		return invalid("status", "Invalid status")
	}

	var issueNumber string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		issue, err := tx.Issue.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		issueNumber = issue.IssueNumber
		oldStatus := issue.Status

		if err := tx.Issue.UpdateStatus(ctx, id, status); err != nil {
			return err
		}

		hasNotes := strings.TrimSpace(notes) != ""
		var auditNotes *string
		if hasNotes {
			auditNotes = strPtr(notes)
		}
		if err := tx.Audit.Record(ctx, id, p.UserID, entity.AuditActionStatusChange, &oldStatus, strPtr(status), auditNotes); err != nil {
			return err
		}

		if hasNotes {
			return tx.Comment.Create(ctx, &entity.Comment{IssueID: id, UserID: p.UserID, Body: notes})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("change status: %w", err)
	}

	s.committed(id, issueNumber, entity.AuditActionStatusChange)
	return nil
}

// MarkComplete 设置完成标记，不改变status。每次调用都追加审计记录
func (s *IssueService) MarkComplete(ctx context.Context, p *access.Principal, id string) error {
	if err := s.gate.Require(p, access.IssueManage); err != nil {
		return err
	}

	var issueNumber string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		issue, err := tx.Issue.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		issueNumber = issue.IssueNumber

		if err := tx.Issue.MarkComplete(ctx, id); err != nil {
			return err
		}
		return tx.Audit.Record(ctx, id, p.UserID, entity.AuditActionMarkedComplete,
			nil, nil, strPtr("Issue marked as complete"))
	})
	if err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}

	s.committed(id, issueNumber, entity.AuditActionMarkedComplete)
	return nil
}

// UpdateIssueInput 管理员修改问题详情，未提供的字段清空
type UpdateIssueInput struct {
	SupplierID         string `json:"supplier_id"`
	ProductID          string `json:"product_id"`
	Origin             string `json:"origin"`
	LotNumber          string `json:"lot_number"`
	ItemNo             string `json:"item_no"`
	AffectedItem       string `json:"affected_item"`
	PalletsAffected    *int   `json:"pallets_affected"`
	PalletType         string `json:"pallet_type"`
	TotalCasesAffected *int   `json:"total_cases_affected"`
	PiecesPerUnit      *int   `json:"pieces_per_unit"`
	QuantityType       string `json:"quantity_type"`
	IssueType          string `json:"issue_type"`
	Description        string `json:"description"`
	Notes              string `json:"notes"`
	AssignedTo         string `json:"assigned_to"`
}

func (in *UpdateIssueInput) fields() map[string]interface{} {
	return map[string]interface{}{
		"supplier_id":          optionalString(in.SupplierID),
		"product_id":           optionalString(in.ProductID),
		"origin":               in.Origin,
		"lot_number":           in.LotNumber,
		"item_no":              in.ItemNo,
		"affected_item":        in.AffectedItem,
		"pallets_affected":     nonZero(in.PalletsAffected),
		"pallet_type":          in.PalletType,
		"total_cases_affected": nonZero(in.TotalCasesAffected),
		"pieces_per_unit":      nonZero(in.PiecesPerUnit),
		"quantity_type":        in.QuantityType,
		"issue_type":           in.IssueType,
		"description":          in.Description,
		"notes":                in.Notes,
		"assigned_to":          optionalString(in.AssignedTo),
	}
}

// Update 修改问题详情，字段写入和审计记录在同一事务内
func (s *IssueService) Update(ctx context.Context, p *access.Principal, id string, in *UpdateIssueInput) error {
	if err := s.gate.Require(p, access.IssueManage); err != nil {
		return err
	}

	var issueNumber string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		issue, err := tx.Issue.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		issueNumber = issue.IssueNumber

		if err := tx.Issue.UpdateFields(ctx, id, in.fields()); err != nil {
			return err
		}
		return tx.Audit.Record(ctx, id, p.UserID, entity.AuditActionUpdated,
			nil, nil, strPtr("Issue details updated"))
	})
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}

	s.committed(id, issueNumber, entity.AuditActionUpdated)
	return nil
}

// AttachPhotos 给已有问题追加照片
func (s *IssueService) AttachPhotos(ctx context.Context, p *access.Principal, id string, uploads []Upload) ([]entity.Photo, error) {
	if err := s.gate.Require(p, access.IssueAttach); err != nil {
		return nil, err
	}

	issue, err := s.repos.Issue.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, invalid("photos", "No photos provided")
	}
	if err := s.limits.validateUploads(uploads); err != nil {
		return nil, err
	}

	photos, err := s.saveUploads(ctx, uploads, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("save photos: %w", err)
	}
	for i := range photos {
		photos[i].IssueID = id
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		return tx.Photo.CreateBatch(ctx, photos)
	})
	if err != nil {
		s.removeFiles(ctx, photos)
		return nil, fmt.Errorf("attach photos: %w", err)
	}

	for i := range photos {
		photos[i].URL = storage.PublicPath(photos[i].FilePath)
	}
	s.committed(id, issue.IssueNumber, "photos_added")
	return photos, nil
}

// AddComment 添加评论
func (s *IssueService) AddComment(ctx context.Context, p *access.Principal, id, body string) (*entity.Comment, error) {
	if err := s.gate.Require(p, access.IssueComment); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, invalid("comment", "Comment is required")
	}

	issue, err := s.repos.Issue.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	comment := &entity.Comment{IssueID: id, UserID: p.UserID, Body: body}
	if err := s.repos.Comment.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}

	s.committed(id, issue.IssueNumber, "commented")
	return comment, nil
}

// Delete 删除问题及其子记录，提交后尽力删除照片文件
func (s *IssueService) Delete(ctx context.Context, p *access.Principal, id string) error {
	if err := s.gate.Require(p, access.IssueManage); err != nil {
		return err
	}

	var paths []string
	var issueNumber string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		issue, err := tx.Issue.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		issueNumber = issue.IssueNumber

		if paths, err = tx.Photo.PathsByIssue(ctx, id); err != nil {
			return err
		}
		return tx.Issue.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}

	s.removePaths(ctx, paths)
	s.committed(id, issueNumber, "deleted")
	s.logger.Info("issue deleted",
		zap.String("issue_id", id),
		zap.Int("photos", len(paths)),
		zap.String("user_id", p.UserID))
	return nil
}

func strPtr(s string) *string {
	return &s
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func nonZero(v *int) *int {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}

func parseOptionalInt(field, raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, invalid(field, "must be a whole number")
	}
	return nonZero(&n), nil
}
