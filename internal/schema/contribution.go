package schema

import "time"

// Contribution 贡献流水（探针发射、上传、投票计数等）
// append-only：只插入，不更新不删除；排行与进度在读时 SUM/COUNT。
// 无幂等键，重复提交会记两笔（沿用原行为）。
type Contribution struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID          *int64    `gorm:"index" json:"event_id,omitempty"`          // 归属周事件（与分类二选一）
	ClassificationID *int64    `gorm:"index" json:"classification_id,omitempty"` // 归属分类
	UserID           string    `gorm:"size:36;index" json:"user_id"`
	Quantity         int       `gorm:"not null" json:"quantity"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 指定表名
func (Contribution) TableName() string {
	return "contributions"
}
