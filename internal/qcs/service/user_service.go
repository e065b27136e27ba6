package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/qcs/internal/qcs/access"
	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"github.com/bitfantasy/qcs/internal/qcs/repository"
)

// UserService 用户管理
type UserService struct {
	userRepo *repository.UserRepository
	gate     *access.Gate
}

func NewUserService(userRepo *repository.UserRepository, gate *access.Gate) *UserService {
	return &UserService{userRepo: userRepo, gate: gate}
}

// CreateUserInput 创建用户
type CreateUserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

func (s *UserService) List(ctx context.Context, p *access.Principal) ([]entity.User, error) {
	if err := s.gate.Require(p, access.UserManage); err != nil {
		return nil, err
	}
	return s.userRepo.FindAll(ctx)
}

func (s *UserService) Create(ctx context.Context, p *access.Principal, in *CreateUserInput) (*entity.User, error) {
	if err := s.gate.Require(p, access.UserManage); err != nil {
		return nil, err
	}
	return s.CreateUnchecked(ctx, in)
}

// CreateUnchecked 不做权限校验，供命令行初始化管理员使用
func (s *UserService) CreateUnchecked(ctx context.Context, in *CreateUserInput) (*entity.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, invalid("username", "Username is required")
	}
	if len(in.Password) < 6 {
		return nil, invalid("password", "Password must be at least 6 characters")
	}
	if in.Role == "" {
		in.Role = entity.RoleUser
	}
	if in.Role != entity.RoleAdmin && in.Role != entity.RoleUser {
		return nil, invalid("role", "must be admin or user")
	}

	_, err := s.userRepo.FindByUsername(ctx, in.Username)
	if err == nil {
		return nil, invalid("username", "Username already exists")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &entity.User{
		Username: in.Username,
		Password: hash,
		Role:     in.Role,
		FullName: in.FullName,
		Email:    in.Email,
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Deactivate 停用用户，不能停用自己
func (s *UserService) Deactivate(ctx context.Context, p *access.Principal, id string) error {
	if err := s.gate.Require(p, access.UserManage); err != nil {
		return err
	}
	if id == p.UserID {
		return invalid("id", "Cannot deactivate your own account")
	}
	return s.userRepo.Deactivate(ctx, id)
}
