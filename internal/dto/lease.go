package dto

// ── 租约模块 DTO ──

// RequestLeaseRequest 领取批次请求
type RequestLeaseRequest struct {
	SubjectCode string `json:"subject_code" binding:"required,max=32"`
	ExamName    string `json:"exam_name"    binding:"required,max=100"`
	BatchSize   int    `json:"batch_size"   binding:"omitempty,min=1"` // 缺省使用 lease.default_batch_size，超过上限截断
}

// ActiveLeaseRequest 查询当前租约参数
type ActiveLeaseRequest struct {
	SubjectCode string `form:"subject_code" binding:"omitempty,max=32"`
}

// LeaseStatsRequest 评阅统计查询参数
type LeaseStatsRequest struct {
	SubjectCode string `form:"subject_code" binding:"omitempty,max=32"`
}

// ── 响应 ──

// LeaseResponse 租约响应
type LeaseResponse struct {
	LeaseID     string              `json:"lease_id"`
	EvaluatorID string              `json:"evaluator_id"`
	SubjectCode string              `json:"subject_code"`
	ExamName    string              `json:"exam_name"`
	ItemCount   int                 `json:"item_count"`
	IsActive    bool                `json:"is_active"`
	ExpiresAt   string              `json:"expires_at"`
	CreatedAt   string              `json:"created_at"`
	Reused      bool                `json:"reused"` // true 表示返回的是已有的有效租约
	Items       []LeaseItemResponse `json:"items"`  // 仅包含未完成的答卷
}

// LeaseItemResponse 租约内答卷
type LeaseItemResponse struct {
	Barcode    string  `json:"barcode"`
	AssignedAt string  `json:"assigned_at"`
	StartedAt  *string `json:"started_at,omitempty"`
}

// ActiveLeaseResponse 当前租约查询响应；无租约时 Lease 为空
type ActiveLeaseResponse struct {
	HasLease bool           `json:"has_lease"`
	Lease    *LeaseResponse `json:"lease,omitempty"`
}

// StartItemResponse 开始评阅响应
type StartItemResponse struct {
	Barcode   string `json:"barcode"`
	LeaseID   string `json:"lease_id"`
	StartedAt string `json:"started_at"`
	ExpiresAt string `json:"expires_at"` // 延期后的到期时间
}

// LeaseStatsResponse 评阅员统计
type LeaseStatsResponse struct {
	Leased  int64 `json:"leased"`
	Checked int64 `json:"checked"`
	Pending int64 `json:"pending"`
}
