package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aweiyin/stardeck/internal/eventbus"
	"github.com/aweiyin/stardeck/internal/schema"
)

var (
	// ErrEventNotFound 引用的周事件不存在
	ErrEventNotFound = errors.New("周事件不存在")
	// ErrInvalidProbeCount 探针数量非正
	ErrInvalidProbeCount = errors.New("探针数量必须为正")
	// ErrInvalidWeekDate 周日期格式或范围非法
	ErrInvalidWeekDate = errors.New("周日期非法，应为 YYYY-MM-DD")
	// ErrThresholdNotMet 贡献尚未跨过防御阈值
	ErrThresholdNotMet = errors.New("贡献尚未达到防御阈值")
)

// SolarBalance 太阳事件的游戏平衡参数（可热更新）
type SolarBalance struct {
	DefenseThreshold int64 // 防御成功所需贡献和
	AutoDefend       bool  // 跨过阈值后是否自动置防御成功
}

// SolarService 周度太阳防御事件：NoEvent → Open → Defended（当周终态）
type SolarService struct {
	events        SolarEventStore
	contributions ContributionStore
	hub           *eventbus.Hub

	mu      sync.RWMutex
	balance SolarBalance
}

// NewSolarService 创建太阳事件服务
func NewSolarService(events SolarEventStore, contributions ContributionStore, hub *eventbus.Hub, balance SolarBalance) *SolarService {
	if balance.DefenseThreshold <= 0 {
		balance.DefenseThreshold = 100
	}
	return &SolarService{
		events:        events,
		contributions: contributions,
		hub:           hub,
		balance:       balance,
	}
}

// SetBalance 热更新平衡参数（配置文件变更时由 bootstrap 调用）
func (s *SolarService) SetBalance(balance SolarBalance) {
	if balance.DefenseThreshold <= 0 {
		return
	}
	s.mu.Lock()
	s.balance = balance
	s.mu.Unlock()
	slog.Info("太阳事件平衡参数已更新", "defense_threshold", balance.DefenseThreshold, "auto_defend", balance.AutoDefend)
}

// Balance 读取当前平衡参数
func (s *SolarService) Balance() SolarBalance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance
}

// EnsureEvent 取到 now 所在周的事件行，首次访问时惰性创建（幂等）
func (s *SolarService) EnsureEvent(ctx context.Context, now time.Time) (*schema.SolarEvent, error) {
	win := WeekWindowFor(now)
	return s.events.EnsureWeek(ctx, win.StartDate(), win.EndDate())
}

// EnsureEventForWeek 按调用方给定的周边界取事件行。
// 只校验日期格式；weekEnd 缺省时由 weekStart 推出，给定时原样存储
// （7 天跨度约束的是周窗口计算，不约束调用方输入）。
func (s *SolarService) EnsureEventForWeek(ctx context.Context, weekStart, weekEnd string) (*schema.SolarEvent, error) {
	start, err := time.ParseInLocation("2006-01-02", weekStart, time.Local)
	if err != nil {
		return nil, ErrInvalidWeekDate
	}
	if weekEnd == "" {
		weekEnd = start.AddDate(0, 0, 7).Format("2006-01-02")
	} else if _, err := time.ParseInLocation("2006-01-02", weekEnd, time.Local); err != nil {
		return nil, ErrInvalidWeekDate
	}
	return s.events.EnsureWeek(ctx, weekStart, weekEnd)
}

// EventProgress 事件进度
type EventProgress struct {
	Event     *schema.SolarEvent
	Total     int64
	Threshold int64
}

// Progress 某事件的贡献和与当前阈值
func (s *SolarService) Progress(ctx context.Context, eventID int64) (*EventProgress, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	total, err := s.contributions.SumByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &EventProgress{Event: event, Total: total, Threshold: s.Balance().DefenseThreshold}, nil
}

// CurrentWeek now 所在周的事件与进度（惰性创建）
func (s *SolarService) CurrentWeek(ctx context.Context, now time.Time) (*EventProgress, error) {
	event, err := s.EnsureEvent(ctx, now)
	if err != nil {
		return nil, err
	}
	return s.Progress(ctx, event.ID)
}

// LaunchProbe 发射探针：记一笔贡献，并在贡献和跨过阈值时自动置防御成功。
// count<=0 校验失败，无写入。无幂等键，重复提交记两笔（沿用原行为）。
func (s *SolarService) LaunchProbe(ctx context.Context, userID string, eventID int64, count int) (*EventProgress, error) {
	if count <= 0 {
		return nil, ErrInvalidProbeCount
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}

	if err := s.contributions.Create(ctx, &schema.Contribution{
		EventID:  &eventID,
		UserID:   userID,
		Quantity: count,
	}); err != nil {
		return nil, fmt.Errorf("记录探针贡献失败: %w", err)
	}

	progress, err := s.Progress(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if s.Balance().AutoDefend && !progress.Event.WasDefended && progress.Total >= progress.Threshold {
		if err := s.defend(ctx, progress.Event); err != nil {
			return nil, err
		}
		progress.Event.WasDefended = true
	}
	return progress, nil
}

// MarkDefended 显式置防御成功。事件不存在报错且无写入；
// 已防御时幂等返回；贡献和未达阈值时拒绝。
func (s *SolarService) MarkDefended(ctx context.Context, eventID int64) (*schema.SolarEvent, error) {
	progress, err := s.Progress(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if progress.Event.WasDefended {
		return progress.Event, nil
	}
	if progress.Total < progress.Threshold {
		return nil, ErrThresholdNotMet
	}
	if err := s.defend(ctx, progress.Event); err != nil {
		return nil, err
	}
	progress.Event.WasDefended = true
	return progress.Event, nil
}

// defend 落库并广播
func (s *SolarService) defend(ctx context.Context, event *schema.SolarEvent) error {
	if err := s.events.MarkDefended(ctx, event.ID); err != nil {
		return fmt.Errorf("置防御状态失败: %w", err)
	}
	slog.Info("本周太阳事件防御成功", "event_id", event.ID, "week_start", event.WeekStart)
	if s.hub != nil {
		s.hub.Publish(eventbus.Defended(event.ID, event.WeekStart))
	}
	return nil
}
