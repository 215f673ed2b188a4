package model

import "time"

// EvaluationRecord 评分记录表 — 对应 evaluation_records
// 每份答卷只写一次（barcode 唯一）；更正需走外部作废流程，引擎内不覆盖
type EvaluationRecord struct {
	RecordID     string    `gorm:"type:varchar(36);primaryKey"                                  json:"record_id"`
	Barcode      string    `gorm:"type:varchar(64);not null;uniqueIndex:uq_evaluation_records_barcode" json:"barcode"`
	Score        float64   `gorm:"type:numeric(6,2);not null"                                   json:"score"`
	MaxScore     float64   `gorm:"type:numeric(6,2);not null"                                   json:"max_score"`
	EvaluatorID  string    `gorm:"type:varchar(64);not null"                                    json:"evaluator_id"`
	EvaluatedAt  time.Time `gorm:"not null"                                                     json:"evaluated_at"`
	RejectReason *string   `gorm:"type:varchar(500)"                                            json:"reject_reason,omitempty"`
	IsVoided     bool      `gorm:"not null;default:false"                                       json:"is_voided"`
}

// TableName 指定表名
func (EvaluationRecord) TableName() string { return "evaluation_records" }

// AnnotationRecord 批注记录表 — 对应 annotation_records
// 与 EvaluationRecord 一一对应、同事务写入；内容为前端渲染层提交的原始字节，引擎不解析
type AnnotationRecord struct {
	RecordID    string    `gorm:"type:varchar(36);primaryKey"                                  json:"record_id"`
	Barcode     string    `gorm:"type:varchar(64);not null;uniqueIndex:uq_annotation_records_barcode" json:"barcode"`
	Annotations []byte    `gorm:"type:bytea;not null"                                          json:"-"`
	Overlay     []byte    `gorm:"type:bytea"                                                   json:"-"`
	CreatedAt   time.Time `gorm:"not null"                                                     json:"created_at"`
}

// TableName 指定表名
func (AnnotationRecord) TableName() string { return "annotation_records" }
