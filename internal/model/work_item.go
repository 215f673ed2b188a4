package model

import "time"

// WorkItem 答卷（待评阅份）表 — 对应 work_items
//   - ID 为自增序号，记录入库顺序，领取时按 ID 升序分配
//   - Barcode 为对外唯一标识
//   - IsAssigned 仅由租约领取（置 true）与过期回收（置 false）修改
//   - IsChecked 仅由评分提交修改
type WorkItem struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"                                              json:"-"`
	Barcode     string    `gorm:"type:varchar(64);not null;uniqueIndex:uq_work_items_barcode"           json:"barcode"`
	SubjectCode string    `gorm:"type:varchar(32);not null;index:idx_work_items_subject_exam,priority:1" json:"subject_code"`
	ExamName    string    `gorm:"type:varchar(100);not null;index:idx_work_items_subject_exam,priority:2" json:"exam_name"`
	BagID       string    `gorm:"type:varchar(64);not null;default:''"                                  json:"bag_id"`
	PackID      string    `gorm:"type:varchar(64);not null;default:''"                                  json:"pack_id"`
	IsAssigned  bool      `gorm:"not null;default:false"                                                json:"is_assigned"`
	IsChecked   bool      `gorm:"not null;default:false"                                                json:"is_checked"`
	CreatedAt   time.Time `gorm:"not null"                                                              json:"created_at"`
}

// TableName 指定表名
func (WorkItem) TableName() string { return "work_items" }
