package bootstrap

import (
	"context"

	"github.com/aweiyin/stardeck/internal/eventbus"
	"github.com/aweiyin/stardeck/internal/pkg/config"
	"github.com/aweiyin/stardeck/internal/repository"
	"github.com/aweiyin/stardeck/internal/service"
)

// Core 持有全部核心依赖（配置、数据库、仓储、服务、事件 Hub）
type Core struct {
	Cfg     *config.Config
	CfgPath string
	DB      *repository.Database
	Hub     *eventbus.Hub

	Repos struct {
		User           *repository.UserRepository
		Anomaly        *repository.AnomalyRepository
		Classification *repository.ClassificationRepository
		SolarEvent     *repository.SolarEventRepository
		Contribution   *repository.ContributionRepository
		Vote           *repository.VoteRepository
		Inventory      *repository.InventoryRepository
		LinkedAnomaly  *repository.LinkedAnomalyRepository
		Comment        *repository.CommentRepository
	}

	Services struct {
		Solar         *service.SolarService
		Configuration *service.ConfigurationService
		Deploy        *service.DeployService
		Leaderboard   *service.LeaderboardService
	}
}

// NewCore 构建核心依赖
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	config.SetupLogger(cfg.App.LogLevel)

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	c := &Core{Cfg: cfg, CfgPath: cfgPath, DB: db, Hub: eventbus.NewHub()}

	// Repos
	c.Repos.User = repository.NewUserRepository(db.DB)
	c.Repos.Anomaly = repository.NewAnomalyRepository(db.DB)
	c.Repos.Classification = repository.NewClassificationRepository(db.DB)
	c.Repos.SolarEvent = repository.NewSolarEventRepository(db.DB)
	c.Repos.Contribution = repository.NewContributionRepository(db.DB)
	c.Repos.Vote = repository.NewVoteRepository(db.DB)
	c.Repos.Inventory = repository.NewInventoryRepository(db.DB)
	c.Repos.LinkedAnomaly = repository.NewLinkedAnomalyRepository(db.DB)
	c.Repos.Comment = repository.NewCommentRepository(db.DB)

	// Services
	c.Services.Solar = service.NewSolarService(
		c.Repos.SolarEvent,
		c.Repos.Contribution,
		c.Hub,
		service.SolarBalance{
			DefenseThreshold: cfg.Game.DefenseThreshold,
			AutoDefend:       cfg.Game.AutoDefend,
		},
	)
	c.Services.Configuration = service.NewConfigurationService(c.Repos.Classification)
	c.Services.Deploy = service.NewDeployService(c.Repos.Anomaly, c.Repos.LinkedAnomaly, c.Repos.Inventory, c.Repos.Contribution, c.Repos.SolarEvent)
	c.Services.Leaderboard = service.NewLeaderboardService(c.Repos.Contribution, c.Repos.Classification)

	return c, nil
}

// WatchConfig 监听配置文件，把游戏平衡参数热加载到服务里
func (c *Core) WatchConfig(ctx context.Context) error {
	if c.CfgPath == "" {
		return nil
	}
	return config.Watch(ctx, c.CfgPath, func(cfg *config.Config) {
		c.Services.Solar.SetBalance(service.SolarBalance{
			DefenseThreshold: cfg.Game.DefenseThreshold,
			AutoDefend:       cfg.Game.AutoDefend,
		})
	})
}

// Close 释放资源
func (c *Core) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
