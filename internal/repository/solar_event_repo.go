package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aweiyin/stardeck/internal/schema"
)

// SolarEventRepository 周事件仓储
type SolarEventRepository struct {
	db *gorm.DB
}

// NewSolarEventRepository 创建周事件仓储
func NewSolarEventRepository(db *gorm.DB) *SolarEventRepository {
	return &SolarEventRepository{db: db}
}

// EnsureWeek 幂等地取到指定周的事件行：不存在则插入，存在则回读。
// week_start 唯一索引 + DoNothing，并发首次请求也只产生一行。
func (r *SolarEventRepository) EnsureWeek(ctx context.Context, weekStart, weekEnd string) (*schema.SolarEvent, error) {
	event := &schema.SolarEvent{WeekStart: weekStart, WeekEnd: weekEnd}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "week_start"}},
		DoNothing: true,
	}).Create(event).Error
	if err != nil {
		return nil, fmt.Errorf("插入周事件失败: %w", err)
	}

	// 冲突时 Create 不回填主键，统一按 week_start 回读
	var got schema.SolarEvent
	if err := r.db.WithContext(ctx).Where("week_start = ?", weekStart).First(&got).Error; err != nil {
		return nil, fmt.Errorf("回读周事件失败: %w", err)
	}
	return &got, nil
}

// GetByID 按 ID 获取，不存在返回 (nil, nil)
func (r *SolarEventRepository) GetByID(ctx context.Context, id int64) (*schema.SolarEvent, error) {
	var event schema.SolarEvent
	err := r.db.WithContext(ctx).First(&event, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询周事件失败: %w", err)
	}
	return &event, nil
}

// GetByWeekStart 按周起始日期获取，不存在返回 (nil, nil)
func (r *SolarEventRepository) GetByWeekStart(ctx context.Context, weekStart string) (*schema.SolarEvent, error) {
	var event schema.SolarEvent
	err := r.db.WithContext(ctx).Where("week_start = ?", weekStart).First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询周事件失败: %w", err)
	}
	return &event, nil
}

// MarkDefended 置防御成功（当周终态，不回退）
func (r *SolarEventRepository) MarkDefended(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&schema.SolarEvent{}).
		Where("id = ?", id).
		Update("was_defended", true)
	if result.Error != nil {
		return fmt.Errorf("更新防御状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
