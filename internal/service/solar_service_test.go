package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aweiyin/stardeck/internal/repository"
	"github.com/aweiyin/stardeck/internal/schema"
)

type fakeSolarEventStore struct {
	nextID int64
	byWeek map[string]*schema.SolarEvent
}

func newFakeSolarEventStore() *fakeSolarEventStore {
	return &fakeSolarEventStore{byWeek: map[string]*schema.SolarEvent{}}
}

func (f *fakeSolarEventStore) EnsureWeek(ctx context.Context, weekStart, weekEnd string) (*schema.SolarEvent, error) {
	if ev, ok := f.byWeek[weekStart]; ok {
		return ev, nil
	}
	f.nextID++
	ev := &schema.SolarEvent{ID: f.nextID, WeekStart: weekStart, WeekEnd: weekEnd}
	f.byWeek[weekStart] = ev
	return ev, nil
}

func (f *fakeSolarEventStore) GetByID(ctx context.Context, id int64) (*schema.SolarEvent, error) {
	for _, ev := range f.byWeek {
		if ev.ID == id {
			copied := *ev
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSolarEventStore) GetByWeekStart(ctx context.Context, weekStart string) (*schema.SolarEvent, error) {
	if ev, ok := f.byWeek[weekStart]; ok {
		return ev, nil
	}
	return nil, nil
}

func (f *fakeSolarEventStore) MarkDefended(ctx context.Context, id int64) error {
	for _, ev := range f.byWeek {
		if ev.ID == id {
			ev.WasDefended = true
			return nil
		}
	}
	return errors.New("not found")
}

type fakeContributionStore struct {
	rows []schema.Contribution
}

func (f *fakeContributionStore) Create(ctx context.Context, c *schema.Contribution) error {
	f.rows = append(f.rows, *c)
	return nil
}

func (f *fakeContributionStore) SumByEvent(ctx context.Context, eventID int64) (int64, error) {
	var total int64
	for _, c := range f.rows {
		if c.EventID != nil && *c.EventID == eventID {
			total += int64(c.Quantity)
		}
	}
	return total, nil
}

func (f *fakeContributionStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	for _, c := range f.rows {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeContributionStore) LeaderboardByRange(ctx context.Context, start, end time.Time, limit int) ([]repository.UserTotal, error) {
	return nil, nil
}

func newTestSolarService(threshold int64, autoDefend bool) (*SolarService, *fakeSolarEventStore, *fakeContributionStore) {
	events := newFakeSolarEventStore()
	contribs := &fakeContributionStore{}
	svc := NewSolarService(events, contribs, nil, SolarBalance{DefenseThreshold: threshold, AutoDefend: autoDefend})
	return svc, events, contribs
}

func TestEnsureEventIsIdempotent(t *testing.T) {
	svc, events, _ := newTestSolarService(100, true)
	ctx := context.Background()
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.Local)

	first, err := svc.EnsureEvent(ctx, now)
	if err != nil {
		t.Fatalf("EnsureEvent error: %v", err)
	}
	second, err := svc.EnsureEvent(ctx, now.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("EnsureEvent error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("同周两次 ensure 应返回同一事件: %d vs %d", first.ID, second.ID)
	}
	if len(events.byWeek) != 1 {
		t.Fatalf("事件行数=%d, want 1", len(events.byWeek))
	}
}

func TestEnsureEventForWeekValidation(t *testing.T) {
	svc, _, _ := newTestSolarService(100, true)
	ctx := context.Background()

	if _, err := svc.EnsureEventForWeek(ctx, "not-a-date", ""); !errors.Is(err, ErrInvalidWeekDate) {
		t.Fatalf("err=%v, want ErrInvalidWeekDate", err)
	}
	if _, err := svc.EnsureEventForWeek(ctx, "2026-08-23", "bad-date"); !errors.Is(err, ErrInvalidWeekDate) {
		t.Fatalf("err=%v, want ErrInvalidWeekDate", err)
	}

	// weekEnd 缺省时自动推出
	ev, err := svc.EnsureEventForWeek(ctx, "2026-08-23", "")
	if err != nil {
		t.Fatalf("EnsureEventForWeek error: %v", err)
	}
	if ev.WeekEnd != "2026-08-30" {
		t.Fatalf("week_end=%s, want 2026-08-30", ev.WeekEnd)
	}
}

func TestEnsureEventForWeekStoresSuppliedBounds(t *testing.T) {
	svc, events, _ := newTestSolarService(100, true)
	ctx := context.Background()

	// 调用方给定的边界原样存储，不要求恰好 7 天
	ev, err := svc.EnsureEventForWeek(ctx, "2024-01-07", "2024-01-13")
	if err != nil {
		t.Fatalf("EnsureEventForWeek error: %v", err)
	}
	if ev.WeekStart != "2024-01-07" || ev.WeekEnd != "2024-01-13" {
		t.Fatalf("event=%+v, want 边界原样存储", ev)
	}
	if ev.WasDefended {
		t.Fatal("新建事件应为未防御")
	}
	if len(events.byWeek) != 1 {
		t.Fatalf("事件行数=%d, want 1", len(events.byWeek))
	}
}

func TestLaunchProbeRejectsNonPositiveCount(t *testing.T) {
	svc, _, contribs := newTestSolarService(100, true)
	ctx := context.Background()

	ev, _ := svc.EnsureEvent(ctx, time.Now())
	for _, count := range []int{0, -3} {
		if _, err := svc.LaunchProbe(ctx, "u1", ev.ID, count); !errors.Is(err, ErrInvalidProbeCount) {
			t.Fatalf("count=%d err=%v, want ErrInvalidProbeCount", count, err)
		}
	}
	if len(contribs.rows) != 0 {
		t.Fatalf("校验失败不应写入贡献, rows=%d", len(contribs.rows))
	}
}

func TestLaunchProbeUnknownEvent(t *testing.T) {
	svc, _, _ := newTestSolarService(100, true)
	if _, err := svc.LaunchProbe(context.Background(), "u1", 999, 1); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("err=%v, want ErrEventNotFound", err)
	}
}

func TestLaunchProbeAutoDefendsAtThreshold(t *testing.T) {
	svc, events, _ := newTestSolarService(10, true)
	ctx := context.Background()

	ev, _ := svc.EnsureEvent(ctx, time.Now())

	progress, err := svc.LaunchProbe(ctx, "u1", ev.ID, 9)
	if err != nil {
		t.Fatalf("LaunchProbe error: %v", err)
	}
	if progress.Event.WasDefended {
		t.Fatal("总量 9 < 阈值 10，不应置防御成功")
	}

	progress, err = svc.LaunchProbe(ctx, "u2", ev.ID, 1)
	if err != nil {
		t.Fatalf("LaunchProbe error: %v", err)
	}
	if !progress.Event.WasDefended {
		t.Fatal("总量跨过阈值后应自动置防御成功")
	}
	if stored := events.byWeek[ev.WeekStart]; !stored.WasDefended {
		t.Fatal("防御状态应落库")
	}

	// 已防御后仍可记贡献，状态不回退
	progress, err = svc.LaunchProbe(ctx, "u3", ev.ID, 2)
	if err != nil {
		t.Fatalf("LaunchProbe error: %v", err)
	}
	if progress.Total != 12 || !progress.Event.WasDefended {
		t.Fatalf("progress=%+v, want total=12 defended", progress)
	}
}

func TestLaunchProbeNoAutoDefendWhenDisabled(t *testing.T) {
	svc, events, _ := newTestSolarService(5, false)
	ctx := context.Background()

	ev, _ := svc.EnsureEvent(ctx, time.Now())
	progress, err := svc.LaunchProbe(ctx, "u1", ev.ID, 10)
	if err != nil {
		t.Fatalf("LaunchProbe error: %v", err)
	}
	if progress.Event.WasDefended || events.byWeek[ev.WeekStart].WasDefended {
		t.Fatal("auto_defend 关闭时不应自动置防御成功")
	}
}

func TestMarkDefended(t *testing.T) {
	svc, _, _ := newTestSolarService(10, false)
	ctx := context.Background()

	if _, err := svc.MarkDefended(ctx, 999); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("err=%v, want ErrEventNotFound", err)
	}

	ev, _ := svc.EnsureEvent(ctx, time.Now())

	// 未达阈值拒绝
	if _, err := svc.MarkDefended(ctx, ev.ID); !errors.Is(err, ErrThresholdNotMet) {
		t.Fatalf("err=%v, want ErrThresholdNotMet", err)
	}

	if _, err := svc.LaunchProbe(ctx, "u1", ev.ID, 10); err != nil {
		t.Fatalf("LaunchProbe error: %v", err)
	}
	defended, err := svc.MarkDefended(ctx, ev.ID)
	if err != nil {
		t.Fatalf("MarkDefended error: %v", err)
	}
	if !defended.WasDefended {
		t.Fatal("应置防御成功")
	}

	// 已防御时幂等返回
	again, err := svc.MarkDefended(ctx, ev.ID)
	if err != nil {
		t.Fatalf("重复 MarkDefended error: %v", err)
	}
	if !again.WasDefended {
		t.Fatal("重复调用应幂等返回已防御")
	}
}

func TestSetBalanceHotReload(t *testing.T) {
	svc, _, _ := newTestSolarService(100, true)

	svc.SetBalance(SolarBalance{DefenseThreshold: 50, AutoDefend: false})
	b := svc.Balance()
	if b.DefenseThreshold != 50 || b.AutoDefend {
		t.Fatalf("balance=%+v, want threshold=50 autoDefend=false", b)
	}

	// 非法阈值被忽略
	svc.SetBalance(SolarBalance{DefenseThreshold: 0})
	if svc.Balance().DefenseThreshold != 50 {
		t.Fatal("非法阈值不应生效")
	}
}
