package handler

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/bitfantasy/qcs/internal/qcs/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadHandler 照片文件访问，本地存储和MinIO使用同一入口
type UploadHandler struct {
	store  storage.Storage
	logger *zap.Logger
}

func NewUploadHandler(store storage.Storage, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{store: store, logger: logger}
}

// Serve 读取存储中的文件
// GET /uploads/*path
func (h *UploadHandler) Serve(c *gin.Context) {
	key := c.Param("path")

	rc, err := h.store.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) || errors.Is(err, storage.ErrInvalidKey) {
			NotFound(c, "File not found")
			return
		}
		h.logger.Error("open stored file", zap.String("key", key), zap.Error(err))
		InternalError(c, "Internal server error")
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}
