package service

import (
	"github.com/bitfantasy/qcs/internal/config"
	"github.com/bitfantasy/qcs/internal/qcs/access"
	"github.com/bitfantasy/qcs/internal/qcs/repository"
	"github.com/bitfantasy/qcs/internal/qcs/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services QCS服务集合
type Services struct {
	Auth      *AuthService
	Issue     *IssueService
	Export    *ExportService
	Reference *ReferenceService
	User      *UserService
}

// NewServices 创建服务集合，rdb可以为nil
func NewServices(repos *repository.Repositories, store storage.Storage, gate *access.Gate, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	limits := UploadLimits{MaxFileSize: cfg.Upload.MaxFileSize, MaxFiles: cfg.Upload.MaxFiles}
	return &Services{
		Auth:      NewAuthService(repos.User, rdb, cfg.JWT, logger),
		Issue:     NewIssueService(repos, store, gate, limits, logger),
		Export:    NewExportService(repos.Issue, gate),
		Reference: NewReferenceService(repos.Supplier, repos.Product, gate),
		User:      NewUserService(repos.User, gate),
	}
}
