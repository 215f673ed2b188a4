package model

import "time"

// AuditModel 通用审计时间戳（需要记录修改时间的模型嵌入）
type AuditModel struct {
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
