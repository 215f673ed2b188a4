package model

import "time"

// Entitlement 评阅资格表 — 对应 entitlements
// 管理员授予后只停用不删除；引擎只读取 is_active = true 的行
type Entitlement struct {
	EntitlementID string     `gorm:"type:varchar(36);primaryKey"                                             json:"entitlement_id"`
	EvaluatorID   string     `gorm:"type:varchar(64);not null;uniqueIndex:uq_entitlements_triple,priority:1" json:"evaluator_id"`
	SubjectCode   string     `gorm:"type:varchar(32);not null;uniqueIndex:uq_entitlements_triple,priority:2" json:"subject_code"`
	ExamName      string     `gorm:"type:varchar(100);not null;uniqueIndex:uq_entitlements_triple,priority:3" json:"exam_name"`
	IsActive      bool       `gorm:"not null"                                                                json:"is_active"`
	GrantedBy     string     `gorm:"type:varchar(64);not null"                                               json:"granted_by"`
	RevokedBy     *string    `gorm:"type:varchar(64)"                                                        json:"revoked_by,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	AuditModel
}

// TableName 指定表名
func (Entitlement) TableName() string { return "entitlements" }
