package dto

import "encoding/json"

// ── 评分模块 DTO ──

// AnnotationEnvelope 批注数据信封
// Data 由渲染层定义，服务端只校验信封并原样存储
type AnnotationEnvelope struct {
	SchemaVersion int             `json:"schema_version" binding:"required,min=1"`
	Data          json.RawMessage `json:"data"           binding:"required"`
}

// CommitEvaluationRequest 提交评分请求
type CommitEvaluationRequest struct {
	Barcode     string              `json:"barcode"     binding:"required,max=64"`
	Score       *float64            `json:"score"       binding:"required,min=0"`
	MaxScore    float64             `json:"max_score"   binding:"required,gt=0"`
	Annotations AnnotationEnvelope  `json:"annotations" binding:"required"`
	Overlay     *AnnotationEnvelope `json:"overlay"     binding:"omitempty"`
}

// ── 响应 ──

// CommitEvaluationResponse 提交评分响应
type CommitEvaluationResponse struct {
	Barcode     string `json:"barcode"`
	LeaseID     string `json:"lease_id,omitempty"`
	BatchStatus string `json:"batch_status"` // active | completed | expired | untracked
	EvaluatedAt string `json:"evaluated_at"`
}

// EvaluationResponse 评分记录（含批注原文）
type EvaluationResponse struct {
	RecordID     string          `json:"record_id"`
	Barcode      string          `json:"barcode"`
	Score        float64         `json:"score"`
	MaxScore     float64         `json:"max_score"`
	EvaluatorID  string          `json:"evaluator_id"`
	EvaluatedAt  string          `json:"evaluated_at"`
	RejectReason *string         `json:"reject_reason,omitempty"`
	IsVoided     bool            `json:"is_voided"`
	Annotations  json.RawMessage `json:"annotations,omitempty"`
	Overlay      json.RawMessage `json:"overlay,omitempty"`
}

// ExportEvaluationsRequest 成绩导出参数
type ExportEvaluationsRequest struct {
	SubjectCode string `form:"subject_code" binding:"omitempty,max=32"`
	ExamName    string `form:"exam_name"    binding:"omitempty,max=100"`
}
