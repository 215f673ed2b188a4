package model

import "time"

// Lease 批次租约表 — 对应 leases
// 同一 (evaluator_id, subject_code) 至多一条 is_active = true（部分唯一索引保证）
// 失效原因二选一：全部批阅完成（CompletedAt）或超时回收（ReclaimedAt）
type Lease struct {
	LeaseID     string     `gorm:"type:varchar(36);primaryKey"                                                                                  json:"lease_id"`
	EvaluatorID string     `gorm:"type:varchar(64);not null;index:idx_leases_evaluator_subject_active,unique,where:is_active = true,priority:1" json:"evaluator_id"`
	SubjectCode string     `gorm:"type:varchar(32);not null;index:idx_leases_evaluator_subject_active,unique,where:is_active = true,priority:2" json:"subject_code"`
	ExamName    string     `gorm:"type:varchar(100);not null"                                                                                   json:"exam_name"`
	ItemCount   int        `gorm:"not null"                                                                                                     json:"item_count"`
	IsActive    bool       `gorm:"not null;index:idx_leases_active_expires,priority:1"                                                          json:"is_active"`
	ExpiresAt   time.Time  `gorm:"not null;index:idx_leases_active_expires,priority:2"                                                          json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ReclaimedAt *time.Time `json:"reclaimed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null"                                                                                                     json:"created_at"`
}

// TableName 指定表名
func (Lease) TableName() string { return "leases" }

// IsLive 租约有效且未到期
func (l *Lease) IsLive(now time.Time) bool {
	return l.IsActive && l.ExpiresAt.After(now)
}

// LedgerEntry 分配台账表 — 对应 ledger_entries
// 每份答卷在每个租约下一行；同一答卷至多一条 is_checked = false（部分唯一索引保证）
// 租约过期时未完成的台账由回收任务删除，已完成的保留
type LedgerEntry struct {
	EntryID     string     `gorm:"type:varchar(36);primaryKey"                                                            json:"entry_id"`
	Barcode     string     `gorm:"type:varchar(64);not null;index:idx_ledger_entries_barcode_open,unique,where:is_checked = false" json:"barcode"`
	LeaseID     string     `gorm:"type:varchar(36);not null;index:idx_ledger_entries_lease"                               json:"lease_id"`
	EvaluatorID string     `gorm:"type:varchar(64);not null;index:idx_ledger_entries_evaluator"                           json:"evaluator_id"`
	AssignedAt  time.Time  `gorm:"not null"                                                                               json:"assigned_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	IsChecked   bool       `gorm:"not null;default:false"                                                                 json:"is_checked"`
	CheckedAt   *time.Time `json:"checked_at,omitempty"`
}

// TableName 指定表名
func (LedgerEntry) TableName() string { return "ledger_entries" }
