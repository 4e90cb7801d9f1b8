package schema

import "time"

// InventoryItem 玩家道具（望远镜、探针、补给等）
// Configuration 里的 Uses 键是剩余使用次数。
type InventoryItem struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID       string    `gorm:"size:36;index" json:"owner_id"`
	ItemType      string    `gorm:"size:50;index" json:"item_type"`
	Quantity      int       `gorm:"default:1" json:"quantity"`
	Configuration JSONMap   `gorm:"type:text" json:"configuration"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (InventoryItem) TableName() string {
	return "inventory_items"
}
