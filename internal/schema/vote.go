package schema

import "time"

// Vote 对分类的投票
// 重复投票由插入前的查重 select 防（非数据库约束，沿用原行为）。
type Vote struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ClassificationID int64     `gorm:"index" json:"classification_id"`
	UserID           string    `gorm:"size:36;index" json:"user_id"`
	VoteType         string    `gorm:"size:20" json:"vote_type"` // up, down
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Vote) TableName() string {
	return "votes"
}
