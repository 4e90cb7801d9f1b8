package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/aweiyin/stardeck/internal/schema"
)

// ClassificationRepository 分类仓储
type ClassificationRepository struct {
	db *gorm.DB
}

// NewClassificationRepository 创建分类仓储
func NewClassificationRepository(db *gorm.DB) *ClassificationRepository {
	return &ClassificationRepository{db: db}
}

// Create 创建分类
func (r *ClassificationRepository) Create(ctx context.Context, c *schema.Classification) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("插入分类失败: %w", err)
	}
	return nil
}

// GetByID 按 ID 获取，不存在返回 (nil, nil)
func (r *ClassificationRepository) GetByID(ctx context.Context, id int64) (*schema.Classification, error) {
	var c schema.Classification
	err := r.db.WithContext(ctx).First(&c, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询分类失败: %w", err)
	}
	return &c, nil
}

// ListByAnomaly 按异常列出分类
func (r *ClassificationRepository) ListByAnomaly(ctx context.Context, anomalyID int64, limit int) ([]schema.Classification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []schema.Classification
	err := r.db.WithContext(ctx).
		Where("anomaly_id = ?", anomalyID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询分类列表失败: %w", err)
	}
	return out, nil
}

// IncrementVote 对配置 blob 的 votes 计数原子 +1（单条 UPDATE，无读改写窗口），
// 返回更新后的配置。不存在返回 (nil, gorm.ErrRecordNotFound)。
func (r *ClassificationRepository) IncrementVote(ctx context.Context, id int64) (schema.JSONMap, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE classifications
		 SET configuration = json_set(
		     COALESCE(configuration, '{}'),
		     '$.votes',
		     COALESCE(json_extract(configuration, '$.votes'), 0) + 1)
		 WHERE id = ?`, id)
	if result.Error != nil {
		return nil, fmt.Errorf("投票计数失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.getConfiguration(ctx, r.db, id)
}

// MergeConfiguration 浅合并 patch 到配置 blob（右偏，嵌套整体覆盖），
// 返回合并后的配置。读改写包在事务中，SQLite 单写者下即为原子。
func (r *ClassificationRepository) MergeConfiguration(ctx context.Context, id int64, patch schema.JSONMap) (schema.JSONMap, error) {
	var merged schema.JSONMap
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c schema.Classification
		if err := tx.First(&c, id).Error; err != nil {
			return err
		}
		merged = schema.MergeShallow(c.Configuration, patch)
		return tx.Model(&schema.Classification{}).
			Where("id = ?", id).
			Update("configuration", merged).Error
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("合并配置失败: %w", err)
	}
	return merged, nil
}

// getConfiguration 读取配置 blob
func (r *ClassificationRepository) getConfiguration(ctx context.Context, db *gorm.DB, id int64) (schema.JSONMap, error) {
	var c schema.Classification
	if err := db.WithContext(ctx).Select("id", "configuration").First(&c, id).Error; err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	if c.Configuration == nil {
		return schema.JSONMap{}, nil
	}
	return c.Configuration, nil
}

// CountByAuthor 某用户的分类总数（里程碑进度用）
func (r *ClassificationRepository) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&schema.Classification{}).
		Where("author_id = ?", authorID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计分类失败: %w", err)
	}
	return count, nil
}
