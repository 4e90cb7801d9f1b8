package schema

import "time"

// LinkedAnomaly 虚拟设备部署记录：把一个异常挂到用户的某类自动机上
type LinkedAnomaly struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"size:36;index" json:"user_id"`
	AnomalyID int64     `gorm:"index" json:"anomaly_id"`
	Automaton string    `gorm:"size:50" json:"automaton"` // WeatherSatellite, Rover, Telescope
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (LinkedAnomaly) TableName() string {
	return "linked_anomalies"
}
