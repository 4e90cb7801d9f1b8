package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/aweiyin/stardeck/internal/schema"
)

// ErrNoUsesLeft 道具使用次数耗尽
var ErrNoUsesLeft = errors.New("道具使用次数已耗尽")

// InventoryRepository 道具仓储
type InventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository 创建道具仓储
func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Create 创建道具
func (r *InventoryRepository) Create(ctx context.Context, item *schema.InventoryItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("插入道具失败: %w", err)
	}
	return nil
}

// GetByID 按 ID 获取，不存在返回 (nil, nil)
func (r *InventoryRepository) GetByID(ctx context.Context, id int64) (*schema.InventoryItem, error) {
	var item schema.InventoryItem
	err := r.db.WithContext(ctx).First(&item, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询道具失败: %w", err)
	}
	return &item, nil
}

// ListByOwner 列出用户的道具
func (r *InventoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]schema.InventoryItem, error) {
	var out []schema.InventoryItem
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询道具列表失败: %w", err)
	}
	return out, nil
}

// ConsumeUse 配置 blob 的 Uses 计数原子 -1。
// 单条带条件的 UPDATE：次数不足时零行命中，不会减成负数。
func (r *InventoryRepository) ConsumeUse(ctx context.Context, id int64, ownerID string) (int, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET configuration = json_set(
		     COALESCE(configuration, '{}'),
		     '$.Uses',
		     COALESCE(json_extract(configuration, '$.Uses'), 0) - 1)
		 WHERE id = ? AND owner_id = ?
		   AND COALESCE(json_extract(configuration, '$.Uses'), 0) > 0`, id, ownerID)
	if result.Error != nil {
		return 0, fmt.Errorf("扣减使用次数失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// 区分"不存在"与"次数耗尽"
		item, err := r.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		if item == nil || item.OwnerID != ownerID {
			return 0, gorm.ErrRecordNotFound
		}
		return 0, ErrNoUsesLeft
	}

	item, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return schema.GetInt(item.Configuration, schema.ConfKeyUses), nil
}

// MergeConfiguration 浅合并 patch 到道具配置（事务内读改写）
func (r *InventoryRepository) MergeConfiguration(ctx context.Context, id int64, patch schema.JSONMap) (schema.JSONMap, error) {
	var merged schema.JSONMap
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item schema.InventoryItem
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}
		merged = schema.MergeShallow(item.Configuration, patch)
		return tx.Model(&schema.InventoryItem{}).
			Where("id = ?", id).
			Update("configuration", merged).Error
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("合并道具配置失败: %w", err)
	}
	return merged, nil
}
