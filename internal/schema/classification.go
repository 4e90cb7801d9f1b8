package schema

import "time"

// Classification 用户对异常提交的一次判断
// 数据量级：十万级
type Classification struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorID           string    `gorm:"size:36;index" json:"author_id"`
	AnomalyID          int64     `gorm:"index" json:"anomaly_id"`
	Content            string    `gorm:"type:text" json:"content"`
	ClassificationType string    `gorm:"size:50;index" json:"classification_type"` // planet, sunspot, cloud, ...
	Configuration      JSONMap   `gorm:"type:text" json:"classification_configuration"`
	Media              JSONArray `gorm:"type:text" json:"media"` // 附件引用
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Classification) TableName() string {
	return "classifications"
}
