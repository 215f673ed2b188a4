package dto

// ── 评阅资格 DTO ──

// GrantEntitlementRequest 授予评阅资格请求
type GrantEntitlementRequest struct {
	EvaluatorID string `json:"evaluator_id" binding:"required,max=64"`
	SubjectCode string `json:"subject_code" binding:"required,max=32"`
	ExamName    string `json:"exam_name"    binding:"required,max=100"`
}

// EntitlementListRequest 评阅资格列表查询参数
type EntitlementListRequest struct {
	EvaluatorID string `form:"evaluator_id" binding:"omitempty,max=64"`
	SubjectCode string `form:"subject_code" binding:"omitempty,max=32"`
	ExamName    string `form:"exam_name"    binding:"omitempty,max=100"`
	ActiveOnly  bool   `form:"active_only"`
	PaginationRequest
}

// EntitlementResponse 评阅资格响应
type EntitlementResponse struct {
	EntitlementID string  `json:"entitlement_id"`
	EvaluatorID   string  `json:"evaluator_id"`
	SubjectCode   string  `json:"subject_code"`
	ExamName      string  `json:"exam_name"`
	IsActive      bool    `json:"is_active"`
	GrantedBy     string  `json:"granted_by"`
	RevokedBy     *string `json:"revoked_by,omitempty"`
	RevokedAt     *string `json:"revoked_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}
