package service

import "time"

// WeekWindow 一周的半开窗口 [Start, End)
type WeekWindow struct {
	Start time.Time
	End   time.Time
}

// WeekWindowFor 返回 t 所在周的窗口：起点取最近的周日本地零点，终点为起点加 7 天。
// 日历加法用 AddDate，夏令时切换周的时钟跨度可能是 23/25 小时（既定语义，不特判）。
func WeekWindowFor(t time.Time) WeekWindow {
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := int(dayStart.Weekday()) // Sunday == 0
	start := dayStart.AddDate(0, 0, -offset)
	return WeekWindow{Start: start, End: start.AddDate(0, 0, 7)}
}

// Contains 判断 t 是否落在窗口内
func (w WeekWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// StartDate 窗口起始日期（YYYY-MM-DD，含）
func (w WeekWindow) StartDate() string {
	return w.Start.Format("2006-01-02")
}

// EndDate 窗口结束日期（YYYY-MM-DD，不含）
func (w WeekWindow) EndDate() string {
	return w.End.Format("2006-01-02")
}
