package service

import (
	"context"
	"time"

	"github.com/aweiyin/stardeck/internal/repository"
	"github.com/aweiyin/stardeck/internal/schema"
)

// 服务层依赖的仓储接口。实现在 internal/repository，测试用手写 fake。

// SolarEventStore 周事件存取
type SolarEventStore interface {
	EnsureWeek(ctx context.Context, weekStart, weekEnd string) (*schema.SolarEvent, error)
	GetByID(ctx context.Context, id int64) (*schema.SolarEvent, error)
	GetByWeekStart(ctx context.Context, weekStart string) (*schema.SolarEvent, error)
	MarkDefended(ctx context.Context, id int64) error
}

// ContributionStore 贡献流水存取
type ContributionStore interface {
	Create(ctx context.Context, c *schema.Contribution) error
	SumByEvent(ctx context.Context, eventID int64) (int64, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	LeaderboardByRange(ctx context.Context, start, end time.Time, limit int) ([]repository.UserTotal, error)
}

// ClassificationStore 分类存取与配置 blob 操作
type ClassificationStore interface {
	GetByID(ctx context.Context, id int64) (*schema.Classification, error)
	IncrementVote(ctx context.Context, id int64) (schema.JSONMap, error)
	MergeConfiguration(ctx context.Context, id int64, patch schema.JSONMap) (schema.JSONMap, error)
	CountByAuthor(ctx context.Context, authorID string) (int64, error)
}

// AnomalyStore 异常存取
type AnomalyStore interface {
	GetByID(ctx context.Context, id int64) (*schema.Anomaly, error)
	GetRandomByType(ctx context.Context, anomalyType string) (*schema.Anomaly, error)
}

// LinkedAnomalyStore 部署记录存取
type LinkedAnomalyStore interface {
	CreateBatch(ctx context.Context, links []schema.LinkedAnomaly) error
}

// InventoryStore 道具存取
type InventoryStore interface {
	ConsumeUse(ctx context.Context, id int64, ownerID string) (int, error)
}
