package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aweiyin/stardeck/internal/schema"
)

// UserRepository 用户仓储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 创建用户并发放会话 token
func (r *UserRepository) Create(ctx context.Context, username string) (*schema.User, error) {
	user := &schema.User{
		ID:           uuid.NewString(),
		Username:     username,
		SessionToken: uuid.NewString(),
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return user, nil
}

// GetBySessionToken 按会话 token 获取，不存在返回 (nil, nil)
func (r *UserRepository) GetBySessionToken(ctx context.Context, token string) (*schema.User, error) {
	if token == "" {
		return nil, nil
	}
	var user schema.User
	err := r.db.WithContext(ctx).Where("session_token = ?", token).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

// GetByUsername 按用户名获取，不存在返回 (nil, nil)
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*schema.User, error) {
	var user schema.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}
