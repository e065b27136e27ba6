// Package storage 照片文件存储
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PublicPrefix 对外访问前缀
const PublicPrefix = "/uploads/"

var (
	ErrNotExist   = errors.New("stored file does not exist")
	ErrInvalidKey = errors.New("invalid storage key")
)

// Storage 文件存储后端
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewKey 生成不会冲突的存储键 YYYY/MM/<毫秒时间戳>-<随机>.<扩展名>
func NewKey(originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%d/%02d/%d-%s%s", now.Year(), now.Month(), now.UnixMilli(), uuid.New().String()[:8], ext)
}

// PublicPath 存储键转换为对外路径
func PublicPath(key string) string {
	return PublicPrefix + key
}

// cleanKey 拒绝绝对路径和..
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(filepath.ToSlash(key), "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || key == "" {
		return "", fmt.Errorf("%w %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}
