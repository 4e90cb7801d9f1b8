package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/aweiyin/stardeck/internal/schema"
)

// AnomalyRepository 异常仓储
type AnomalyRepository struct {
	db *gorm.DB
}

// NewAnomalyRepository 创建异常仓储
func NewAnomalyRepository(db *gorm.DB) *AnomalyRepository {
	return &AnomalyRepository{db: db}
}

// Create 创建异常
func (r *AnomalyRepository) Create(ctx context.Context, a *schema.Anomaly) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("插入异常失败: %w", err)
	}
	return nil
}

// GetByID 按 ID 获取，不存在返回 (nil, nil)
func (r *AnomalyRepository) GetByID(ctx context.Context, id int64) (*schema.Anomaly, error) {
	var a schema.Anomaly
	err := r.db.WithContext(ctx).First(&a, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询异常失败: %w", err)
	}
	return &a, nil
}

// GetRandomByType 按类型随机取一个（快速部署选目标用）
func (r *AnomalyRepository) GetRandomByType(ctx context.Context, anomalyType string) (*schema.Anomaly, error) {
	var a schema.Anomaly
	err := r.db.WithContext(ctx).
		Where("anomaly_type = ?", anomalyType).
		Order("RANDOM()").
		First(&a).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("随机选取异常失败: %w", err)
	}
	return &a, nil
}

// ListByType 按类型列出
func (r *AnomalyRepository) ListByType(ctx context.Context, anomalyType string, limit int) ([]schema.Anomaly, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []schema.Anomaly
	err := r.db.WithContext(ctx).
		Where("anomaly_type = ?", anomalyType).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询异常列表失败: %w", err)
	}
	return out, nil
}
