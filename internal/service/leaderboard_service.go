package service

import (
	"context"
	"time"

	"github.com/aweiyin/stardeck/internal/repository"
)

// LeaderboardService 排行与里程碑，全部读时聚合，不维护累计值
type LeaderboardService struct {
	contributions   ContributionStore
	classifications ClassificationStore
}

// NewLeaderboardService 创建排行服务
func NewLeaderboardService(contributions ContributionStore, classifications ClassificationStore) *LeaderboardService {
	return &LeaderboardService{contributions: contributions, classifications: classifications}
}

// WeeklyLeaderboard now 所在周的贡献排行
func (s *LeaderboardService) WeeklyLeaderboard(ctx context.Context, now time.Time, limit int) ([]repository.UserTotal, error) {
	win := WeekWindowFor(now)
	return s.contributions.LeaderboardByRange(ctx, win.Start, win.End, limit)
}

// Milestone 里程碑进度
type Milestone struct {
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
	Achieved  bool   `json:"achieved"`
}

// 分类数里程碑档位
var milestoneTiers = []Milestone{
	{Name: "观星学徒", Threshold: 10},
	{Name: "巡天员", Threshold: 50},
	{Name: "星图大师", Threshold: 100},
}

// MilestoneReport 用户里程碑报告
type MilestoneReport struct {
	Classifications int64       `json:"classifications"`
	Contributions   int64       `json:"contributions"`
	Milestones      []Milestone `json:"milestones"`
}

// Milestones 用户的里程碑进度（按分类总数跨档）
func (s *LeaderboardService) Milestones(ctx context.Context, userID string) (*MilestoneReport, error) {
	classified, err := s.classifications.CountByAuthor(ctx, userID)
	if err != nil {
		return nil, err
	}
	contributed, err := s.contributions.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	milestones := make([]Milestone, 0, len(milestoneTiers))
	for _, tier := range milestoneTiers {
		milestones = append(milestones, Milestone{
			Name:      tier.Name,
			Threshold: tier.Threshold,
			Achieved:  classified >= tier.Threshold,
		})
	}

	return &MilestoneReport{
		Classifications: classified,
		Contributions:   contributed,
		Milestones:      milestones,
	}, nil
}
