package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/aweiyin/stardeck/internal/schema"
)

// VoteRepository 投票仓储
type VoteRepository struct {
	db *gorm.DB
}

// NewVoteRepository 创建投票仓储
func NewVoteRepository(db *gorm.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// HasVoted 查重：同用户对同分类是否已投过
func (r *VoteRepository) HasVoted(ctx context.Context, classificationID int64, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&schema.Vote{}).
		Where("classification_id = ? AND user_id = ?", classificationID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询投票失败: %w", err)
	}
	return count > 0, nil
}

// Create 插入投票
func (r *VoteRepository) Create(ctx context.Context, v *schema.Vote) error {
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("插入投票失败: %w", err)
	}
	return nil
}

// CountByClassification 某分类的票数
func (r *VoteRepository) CountByClassification(ctx context.Context, classificationID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&schema.Vote{}).
		Where("classification_id = ?", classificationID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计票数失败: %w", err)
	}
	return count, nil
}
