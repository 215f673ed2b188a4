package model

import "time"

// 复评状态
const (
	ReevaluationPending   = "pending"
	ReevaluationAssigned  = "assigned"
	ReevaluationCompleted = "completed"
)

// ReevaluationRequest 复评申请表 — 对应 reevaluation_requests
// 生命周期独立于批次租约：pending → assigned → completed，无自动过期
type ReevaluationRequest struct {
	RequestID           string     `gorm:"type:varchar(36);primaryKey"                              json:"request_id"`
	Barcode             string     `gorm:"type:varchar(64);not null;index:idx_reevaluation_requests_barcode;index:idx_reevaluation_requests_open,unique,where:status <> 'completed'" json:"barcode"`
	Reason              string     `gorm:"type:varchar(500);not null"                               json:"reason"`
	Status              string     `gorm:"type:varchar(20);not null;default:'pending'"              json:"status"` // pending | assigned | completed
	RequestedBy         string     `gorm:"type:varchar(64);not null"                                json:"requested_by"`
	AssignedEvaluatorID *string    `gorm:"type:varchar(64);index:idx_reevaluation_requests_assignee" json:"assigned_evaluator_id,omitempty"`
	AssignedAt          *time.Time `json:"assigned_at,omitempty"`
	ReevaluatedScore    *float64   `gorm:"type:numeric(6,2)"                                        json:"reevaluated_score,omitempty"`
	Remarks             *string    `gorm:"type:varchar(1000)"                                       json:"remarks,omitempty"`
	SubmittedAt         *time.Time `json:"submitted_at,omitempty"`
	AuditModel
}

// TableName 指定表名
func (ReevaluationRequest) TableName() string { return "reevaluation_requests" }
