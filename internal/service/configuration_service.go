package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/aweiyin/stardeck/internal/schema"
)

var (
	// ErrClassificationNotFound 引用的分类不存在
	ErrClassificationNotFound = errors.New("分类不存在")
	// ErrEmptyPatch merge 动作缺少补丁对象
	ErrEmptyPatch = errors.New("patch 不能为空")
)

// ConfigurationService 分类配置 blob 的两类修改：
// increment_vote（votes 计数 +1）与 merge（浅合并右偏）。
// 原子性由仓储层保证（单语句 UPDATE / 事务）。
type ConfigurationService struct {
	classifications ClassificationStore
}

// NewConfigurationService 创建配置服务
func NewConfigurationService(classifications ClassificationStore) *ConfigurationService {
	return &ConfigurationService{classifications: classifications}
}

// IncrementVote votes 计数 +1，返回新配置
func (s *ConfigurationService) IncrementVote(ctx context.Context, classificationID int64) (schema.JSONMap, error) {
	conf, err := s.classifications.IncrementVote(ctx, classificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassificationNotFound
		}
		return nil, err
	}
	return conf, nil
}

// Merge 浅合并 patch（嵌套结构整体覆盖，不做深合并），返回新配置
func (s *ConfigurationService) Merge(ctx context.Context, classificationID int64, patch schema.JSONMap) (schema.JSONMap, error) {
	if len(patch) == 0 {
		return nil, ErrEmptyPatch
	}
	conf, err := s.classifications.MergeConfiguration(ctx, classificationID, patch)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassificationNotFound
		}
		return nil, err
	}
	return conf, nil
}
