package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/bitfantasy/qcs/internal/middleware"
	"github.com/bitfantasy/qcs/internal/qcs/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const issueNotFound = "Issue not found"

// IssueHandler 问题接口
type IssueHandler struct {
	svc    *service.IssueService
	export *service.ExportService
	logger *zap.Logger
}

func NewIssueHandler(svc *service.IssueService, export *service.ExportService, logger *zap.Logger) *IssueHandler {
	return &IssueHandler{svc: svc, export: export, logger: logger}
}

// List 问题列表
// GET /api/issues
func (h *IssueHandler) List(c *gin.Context) {
	q, err := service.ParseListQuery(c.Request.URL.Query())
	if err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}

	page, err := h.svc.List(c.Request.Context(), middleware.GetPrincipal(c), q)
	if err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}
	Success(c, page)
}

// Stats 看板统计
// GET /api/issues/stats
func (h *IssueHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}
	Success(c, stats)
}

// Get 问题详情
// GET /api/issues/:id
func (h *IssueHandler) Get(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id"))
	if err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}
	Success(c, detail)
}

// Create 创建问题，multipart表单，照片字段为photos
// POST /api/issues
func (h *IssueHandler) Create(c *gin.Context) {
	var in service.CreateIssueInput
	if err := c.ShouldBind(&in); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	uploads, err := formUploads(c)
	if err != nil {
		BadRequest(c, "Invalid upload: "+err.Error())
		return
	}

	res, err := h.svc.Create(c.Request.Context(), middleware.GetPrincipal(c), &in, uploads)
	if err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}
	Created(c, res)
}

// ChangeStatusRequest 修改状态请求
type ChangeStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// ChangeStatus 修改状态
// PATCH /api/issues/:id/status
func (h *IssueHandler) ChangeStatus(c *gin.Context) {
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	if err := h.svc.ChangeStatus(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id"), req.Status, req.Notes); err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}
	Success(c, gin.H{"message": "Status updated successfully"})
}

// MarkComplete 标记完成
// PATCH /api/issues/:id/complete
func (h *IssueHandler) MarkComplete(c *gin.Context) {
	if err := h.svc.MarkComplete(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id")); err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}
	Success(c, gin.H{"message": "Issue marked as complete"})
}

// Update 修改问题详情
// PUT /api/issues/:id
func (h *IssueHandler) Update(c *gin.Context) {
	var in service.UpdateIssueInput
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	if err := h.svc.Update(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id"), &in); err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}
	Success(c, gin.H{"message": "Issue updated successfully"})
}

// AttachPhotos 追加照片
// POST /api/issues/:id/photos
func (h *IssueHandler) AttachPhotos(c *gin.Context) {
	uploads, err := formUploads(c)
	if err != nil {
		BadRequest(c, "Invalid upload: "+err.Error())
		return
	}

	photos, err := h.svc.AttachPhotos(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id"), uploads)
	if err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}
	Created(c, gin.H{"photos": photos})
}

// CommentRequest 评论请求
type CommentRequest struct {
	Comment string `json:"comment"`
}

// AddComment 添加评论
// POST /api/issues/:id/comments
func (h *IssueHandler) AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	comment, err := h.svc.AddComment(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id"), req.Comment)
	if err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}
	Created(c, comment)
}

// Delete 删除问题
// DELETE /api/issues/:id
func (h *IssueHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id")); err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}
	Success(c, gin.H{"message": "Issue deleted successfully"})
}

// ExportCSV 导出CSV
// GET /api/issues/export/csv
func (h *IssueHandler) ExportCSV(c *gin.Context) {
	f, err := service.ParseExportFilter(c.Request.URL.Query())
	if err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}

	rows, err := h.export.Rows(c.Request.Context(), middleware.GetPrincipal(c), f)
	if err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", service.CSVFilename(time.Now())))
	if err := service.WriteCSV(c.Writer, rows); err != nil {
		h.logger.Error("write csv export", zap.Error(err))
	}
}

// ExportXLSX 导出Excel
// GET /api/issues/export/xlsx
func (h *IssueHandler) ExportXLSX(c *gin.Context) {
	f, err := service.ParseExportFilter(c.Request.URL.Query())
	if err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}

	x, filename, err := h.export.XLSX(c.Request.Context(), middleware.GetPrincipal(c), f)
	if err != nil {
		fail(c, h.logger, err, issueNotFound)
		return
	}
	defer x.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if err := x.Write(c.Writer); err != nil {
		h.logger.Error("write xlsx export", zap.Error(err))
	}
}

// formUploads 读取multipart中的photos文件，非multipart请求返回空
func formUploads(c *gin.Context) ([]service.Upload, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}

	files := form.File["photos"]
	uploads := make([]service.Upload, 0, len(files))
	for _, fh := range files {
		uploads = append(uploads, uploadFromHeader(fh))
	}
	return uploads, nil
}

func uploadFromHeader(fh *multipart.FileHeader) service.Upload {
	return service.Upload{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
