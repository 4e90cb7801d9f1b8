package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/aweiyin/stardeck/internal/repository"
	"github.com/aweiyin/stardeck/internal/schema"
)

var (
	// ErrAnomalyNotFound 引用的异常不存在
	ErrAnomalyNotFound = errors.New("异常不存在")
	// ErrNoDeployTarget 没有可部署的目标异常
	ErrNoDeployTarget = errors.New("没有可部署的目标")
	// ErrItemNotFound 道具不存在或不属于该用户
	ErrItemNotFound = errors.New("道具不存在")
	// ErrItemExhausted 道具使用次数耗尽
	ErrItemExhausted = errors.New("道具使用次数已耗尽")
)

// 自动机类型
const (
	AutomatonWeatherSatellite = "WeatherSatellite"
	AutomatonRover            = "Rover"
	AutomatonTelescope        = "Telescope"
)

// 快速部署每次写两行 WeatherSatellite。上游如此，疑似刻意的游戏平衡双写，
// 在拿到产品结论前保持原行为。
const weatherSatelliteLinkCount = 2

// DeployService 虚拟设备部署
type DeployService struct {
	anomalies     AnomalyStore
	links         LinkedAnomalyStore
	inventory     InventoryStore
	contributions ContributionStore
	events        SolarEventStore
}

// NewDeployService 创建部署服务
func NewDeployService(anomalies AnomalyStore, links LinkedAnomalyStore, inventory InventoryStore, contributions ContributionStore, events SolarEventStore) *DeployService {
	return &DeployService{anomalies: anomalies, links: links, inventory: inventory, contributions: contributions, events: events}
}

// QuickDeploySatellite 快速部署气象卫星：随机选一个云型异常，写两行部署记录，
// 并向本周事件计一笔贡献（贡献必须归属到一个事件或分类）
func (s *DeployService) QuickDeploySatellite(ctx context.Context, userID string) ([]schema.LinkedAnomaly, error) {
	anomaly, err := s.anomalies.GetRandomByType(ctx, "cloud")
	if err != nil {
		return nil, err
	}
	if anomaly == nil {
		return nil, ErrNoDeployTarget
	}

	links := make([]schema.LinkedAnomaly, 0, weatherSatelliteLinkCount)
	for i := 0; i < weatherSatelliteLinkCount; i++ {
		links = append(links, schema.LinkedAnomaly{
			UserID:    userID,
			AnomalyID: anomaly.ID,
			Automaton: AutomatonWeatherSatellite,
		})
	}
	if err := s.links.CreateBatch(ctx, links); err != nil {
		return nil, fmt.Errorf("部署卫星失败: %w", err)
	}

	win := WeekWindowFor(time.Now())
	event, err := s.events.EnsureWeek(ctx, win.StartDate(), win.EndDate())
	if err != nil {
		return nil, fmt.Errorf("取本周事件失败: %w", err)
	}
	if err := s.contributions.Create(ctx, &schema.Contribution{
		EventID:  &event.ID,
		UserID:   userID,
		Quantity: 1,
	}); err != nil {
		return nil, fmt.Errorf("记录部署贡献失败: %w", err)
	}

	slog.Info("快速部署卫星", "user_id", userID, "anomaly_id", anomaly.ID, "links", len(links))
	return links, nil
}

// DeployRover 在指定异常上部署漫游车
func (s *DeployService) DeployRover(ctx context.Context, userID string, anomalyID int64) (*schema.LinkedAnomaly, error) {
	anomaly, err := s.anomalies.GetByID(ctx, anomalyID)
	if err != nil {
		return nil, err
	}
	if anomaly == nil {
		return nil, ErrAnomalyNotFound
	}

	link := schema.LinkedAnomaly{
		UserID:    userID,
		AnomalyID: anomalyID,
		Automaton: AutomatonRover,
	}
	if err := s.links.CreateBatch(ctx, []schema.LinkedAnomaly{link}); err != nil {
		return nil, fmt.Errorf("部署漫游车失败: %w", err)
	}
	return &link, nil
}

// UseItem 消耗一次道具使用次数，返回剩余次数
func (s *DeployService) UseItem(ctx context.Context, ownerID string, itemID int64) (int, error) {
	remaining, err := s.inventory.ConsumeUse(ctx, itemID, ownerID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return 0, ErrItemNotFound
		case errors.Is(err, repository.ErrNoUsesLeft):
			return 0, ErrItemExhausted
		}
		return 0, err
	}
	return remaining, nil
}
