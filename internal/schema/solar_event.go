package schema

import "time"

// SolarEvent 周度太阳防御事件，按周起始日期惰性创建
// week_start 唯一索引保证每周至多一行（并发首次请求不再重复建行）。
type SolarEvent struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WeekStart   string    `gorm:"size:10;uniqueIndex" json:"week_start"` // YYYY-MM-DD，含
	WeekEnd     string    `gorm:"size:10" json:"week_end"`               // YYYY-MM-DD，不含
	WasDefended bool      `gorm:"default:false" json:"was_defended"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (SolarEvent) TableName() string {
	return "solar_events"
}
