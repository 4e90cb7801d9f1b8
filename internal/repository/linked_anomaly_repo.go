package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/aweiyin/stardeck/internal/schema"
)

// LinkedAnomalyRepository 部署记录仓储
type LinkedAnomalyRepository struct {
	db *gorm.DB
}

// NewLinkedAnomalyRepository 创建部署记录仓储
func NewLinkedAnomalyRepository(db *gorm.DB) *LinkedAnomalyRepository {
	return &LinkedAnomalyRepository{db: db}
}

// CreateBatch 批量插入部署记录（事务包裹）
func (r *LinkedAnomalyRepository) CreateBatch(ctx context.Context, links []schema.LinkedAnomaly) error {
	if len(links) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&links).Error
	})
	if err != nil {
		return fmt.Errorf("插入部署记录失败: %w", err)
	}
	return nil
}

// ListByUser 列出用户的部署记录
func (r *LinkedAnomalyRepository) ListByUser(ctx context.Context, userID string, limit int) ([]schema.LinkedAnomaly, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []schema.LinkedAnomaly
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询部署记录失败: %w", err)
	}
	return out, nil
}

// CountByUserAndAutomaton 按自动机类型统计用户部署数
func (r *LinkedAnomalyRepository) CountByUserAndAutomaton(ctx context.Context, userID, automaton string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&schema.LinkedAnomaly{}).
		Where("user_id = ? AND automaton = ?", userID, automaton).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计部署数失败: %w", err)
	}
	return count, nil
}
