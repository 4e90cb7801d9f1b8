package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/aweiyin/stardeck/internal/schema"
)

// CommentRepository 评论仓储
type CommentRepository struct {
	db *gorm.DB
}

// NewCommentRepository 创建评论仓储
func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create 插入评论
func (r *CommentRepository) Create(ctx context.Context, c *schema.Comment) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("插入评论失败: %w", err)
	}
	return nil
}

// ListByClassification 按分类列出评论
func (r *CommentRepository) ListByClassification(ctx context.Context, classificationID int64, limit int) ([]schema.Comment, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []schema.Comment
	err := r.db.WithContext(ctx).
		Where("classification_id = ?", classificationID).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询评论失败: %w", err)
	}
	return out, nil
}
