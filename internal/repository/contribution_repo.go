package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aweiyin/stardeck/internal/schema"
)

// ContributionRepository 贡献流水仓储（append-only）
type ContributionRepository struct {
	db *gorm.DB
}

// NewContributionRepository 创建贡献仓储
func NewContributionRepository(db *gorm.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

// Create 记一笔贡献
func (r *ContributionRepository) Create(ctx context.Context, c *schema.Contribution) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("插入贡献失败: %w", err)
	}
	return nil
}

// SumByEvent 某事件的贡献总量（读时聚合，不维护累计值）
func (r *ContributionRepository) SumByEvent(ctx context.Context, eventID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&schema.Contribution{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("event_id = ?", eventID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("统计事件贡献失败: %w", err)
	}
	return total, nil
}

// CountByUser 某用户的贡献笔数
func (r *ContributionRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&schema.Contribution{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计用户贡献失败: %w", err)
	}
	return count, nil
}

// UserTotal 用户贡献聚合行
type UserTotal struct {
	UserID   string `json:"user_id"`
	Total    int64  `json:"total"`
	Username string `json:"username"`
}

// LeaderboardByRange 按创建时间范围聚合的周排行
func (r *ContributionRepository) LeaderboardByRange(ctx context.Context, start, end time.Time, limit int) ([]UserTotal, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []UserTotal
	err := r.db.WithContext(ctx).
		Model(&schema.Contribution{}).
		Select("contributions.user_id, SUM(contributions.quantity) as total, users.username").
		Joins("LEFT JOIN users ON users.id = contributions.user_id").
		Where("contributions.created_at >= ? AND contributions.created_at < ?", start, end).
		Group("contributions.user_id").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询排行失败: %w", err)
	}
	return rows, nil
}
