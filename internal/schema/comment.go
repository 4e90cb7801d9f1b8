package schema

import "time"

// Comment 分类下的评论，append-only
type Comment struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ClassificationID int64     `gorm:"index" json:"classification_id"`
	AuthorID         string    `gorm:"size:36;index" json:"author_id"`
	Content          string    `gorm:"type:text" json:"content"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Comment) TableName() string {
	return "comments"
}
