package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitfantasy/qcs/internal/metrics"
	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"github.com/bitfantasy/qcs/internal/qcs/storage"
	"go.uber.org/zap"
)

// Upload 待保存的上传文件
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// UploadLimits 上传限制
type UploadLimits struct {
	MaxFileSize int64
	MaxFiles    int
}

func DefaultUploadLimits() UploadLimits {
	return UploadLimits{MaxFileSize: 10 << 20, MaxFiles: 10}
}

var (
	allowedExtensions = map[string]bool{".jpeg": true, ".jpg": true, ".png": true, ".gif": true, ".webp": true}
	allowedMimeTypes  = map[string]bool{"image/jpeg": true, "image/jpg": true, "image/png": true, "image/gif": true, "image/webp": true}
)

// validateUploads 扩展名和MIME类型都必须是允许的图片类型
func (l UploadLimits) validateUploads(uploads []Upload) error {
	if l.MaxFiles > 0 && len(uploads) > l.MaxFiles {
		return invalid("photos", "too many files")
	}
	for _, u := range uploads {
		ext := strings.ToLower(filepath.Ext(u.Filename))
		mime := strings.ToLower(strings.TrimSpace(strings.SplitN(u.ContentType, ";", 2)[0]))
		if !allowedExtensions[ext] || !allowedMimeTypes[mime] {
			return invalid("photos", "Only image files are allowed")
		}
		if l.MaxFileSize > 0 && u.Size > l.MaxFileSize {
			return invalid("photos", "file too large")
		}
	}
	return nil
}

// saveUploads 保存文件，返回照片记录（尚未入库）。失败时删除已保存的文件
func (s *IssueService) saveUploads(ctx context.Context, uploads []Upload, uploadedBy string) ([]entity.Photo, error) {
	photos := make([]entity.Photo, 0, len(uploads))
	for _, u := range uploads {
		key := storage.NewKey(u.Filename, time.Now())
		if err := s.saveOne(ctx, key, u); err != nil {
			s.removeFiles(ctx, photos)
			return nil, err
		}
		photos = append(photos, entity.Photo{
			FileName:   u.Filename,
			FilePath:   key,
			FileSize:   u.Size,
			MimeType:   u.ContentType,
			UploadedBy: uploadedBy,
		})
	}
	return photos, nil
}

func (s *IssueService) saveOne(ctx context.Context, key string, u Upload) error {
	r, err := u.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	return s.store.Save(ctx, key, r, u.Size, u.ContentType)
}

// removeFiles 尽力删除，失败只记录日志
func (s *IssueService) removeFiles(ctx context.Context, photos []entity.Photo) {
	paths := make([]string, 0, len(photos))
	for _, p := range photos {
		paths = append(paths, p.FilePath)
	}
	s.removePaths(ctx, paths)
}

func (s *IssueService) removePaths(ctx context.Context, paths []string) {
	for _, path := range paths {
		if err := s.store.Delete(ctx, path); err != nil {
			if errors.Is(err, storage.ErrNotExist) {
				continue
			}
			metrics.FileCleanupFailed()
			s.logger.Warn("failed to delete photo file", zap.String("path", path), zap.Error(err))
		}
	}
}
