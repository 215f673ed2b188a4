package dto

// ── 复评模块 DTO ──

// CreateReevaluationRequest 发起复评请求
type CreateReevaluationRequest struct {
	Barcode string `json:"barcode" binding:"required,max=64"`
	Reason  string `json:"reason"  binding:"required,min=2,max=500"`
}

// AssignReevaluationRequest 分配复评请求
type AssignReevaluationRequest struct {
	EvaluatorID string `json:"evaluator_id" binding:"required,max=64"`
}

// SubmitReevaluationRequest 提交复评请求
type SubmitReevaluationRequest struct {
	Score   *float64 `json:"score"   binding:"required,min=0"`
	Remarks string   `json:"remarks" binding:"omitempty,max=1000"`
}

// ReevaluationListRequest 复评列表查询参数
type ReevaluationListRequest struct {
	Status              string `form:"status"                binding:"omitempty,oneof=pending assigned completed"`
	Barcode             string `form:"barcode"               binding:"omitempty,max=64"`
	AssignedEvaluatorID string `form:"assigned_evaluator_id" binding:"omitempty,max=64"`
	PaginationRequest
}

// ── 响应 ──

// ReevaluationResponse 复评申请响应
type ReevaluationResponse struct {
	RequestID           string   `json:"request_id"`
	Barcode             string   `json:"barcode"`
	Reason              string   `json:"reason"`
	Status              string   `json:"status"`
	RequestedBy         string   `json:"requested_by"`
	AssignedEvaluatorID *string  `json:"assigned_evaluator_id,omitempty"`
	AssignedAt          *string  `json:"assigned_at,omitempty"`
	OriginalScore       *float64 `json:"original_score,omitempty"`
	MaxScore            *float64 `json:"max_score,omitempty"`
	ReevaluatedScore    *float64 `json:"reevaluated_score,omitempty"`
	Remarks             *string  `json:"remarks,omitempty"`
	SubmittedAt         *string  `json:"submitted_at,omitempty"`
	CreatedAt           string   `json:"created_at"`
}
