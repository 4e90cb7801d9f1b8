package schema

import "time"

// User 玩家账号
// 鉴权只认 session_token，注册即发放；不承载密码（托管登录不在本服务范围）。
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"` // UUID
	Username     string    `gorm:"size:100;uniqueIndex" json:"username"`
	SessionToken string    `gorm:"size:64;uniqueIndex" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
