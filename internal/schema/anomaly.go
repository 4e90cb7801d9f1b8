package schema

import "time"

// Anomaly 待分类的原始数据单元（光变曲线、云图、地表影像等）
// 数据量级：万级
type Anomaly struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Content       string    `gorm:"type:text" json:"content"`                // 展示名或数据引用
	AnomalyType   string    `gorm:"size:50;index" json:"anomaly_type"`       // planet, sunspot, cloud, roverImg
	Configuration JSONMap   `gorm:"type:text" json:"configuration"`          // 附属状态（非正式键约定）
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Anomaly) TableName() string {
	return "anomalies"
}
