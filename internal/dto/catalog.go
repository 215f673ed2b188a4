package dto

// ── 答卷池 DTO ──

// WorkItemInput 单份答卷入库数据
type WorkItemInput struct {
	Barcode     string `json:"barcode"      binding:"required,max=64"`
	SubjectCode string `json:"subject_code" binding:"required,max=32"`
	ExamName    string `json:"exam_name"    binding:"required,max=100"`
	BagID       string `json:"bag_id"       binding:"omitempty,max=64"`
	PackID      string `json:"pack_id"      binding:"omitempty,max=64"`
}

// IngestWorkItemsRequest 批量入库请求
type IngestWorkItemsRequest struct {
	Items []WorkItemInput `json:"items" binding:"required,min=1,max=5000,dive"`
}

// IngestWorkItemsResponse 批量入库结果；barcode 已存在的计入 Skipped
type IngestWorkItemsResponse struct {
	Submitted int   `json:"submitted"`
	Inserted  int64 `json:"inserted"`
	Skipped   int64 `json:"skipped"`
}

// WorkItemListRequest 答卷列表查询参数
type WorkItemListRequest struct {
	SubjectCode string `form:"subject_code" binding:"omitempty,max=32"`
	ExamName    string `form:"exam_name"    binding:"omitempty,max=100"`
	BagID       string `form:"bag_id"       binding:"omitempty,max=64"`
	Assigned    *bool  `form:"assigned"`
	Checked     *bool  `form:"checked"`
	PaginationRequest
}

// SubjectProgressRequest 科目进度查询参数
type SubjectProgressRequest struct {
	SubjectCode string `form:"subject_code" binding:"required,max=32"`
	ExamName    string `form:"exam_name"    binding:"omitempty,max=100"`
}

// ── 响应 ──

// WorkItemResponse 答卷响应
type WorkItemResponse struct {
	Barcode     string `json:"barcode"`
	SubjectCode string `json:"subject_code"`
	ExamName    string `json:"exam_name"`
	BagID       string `json:"bag_id"`
	PackID      string `json:"pack_id"`
	IsAssigned  bool   `json:"is_assigned"`
	IsChecked   bool   `json:"is_checked"`
	CreatedAt   string `json:"created_at"`
}

// SubjectProgressResponse 科目评阅进度
type SubjectProgressResponse struct {
	SubjectCode string `json:"subject_code"`
	ExamName    string `json:"exam_name,omitempty"`
	Total       int64  `json:"total"`
	Unassigned  int64  `json:"unassigned"`
	InProgress  int64  `json:"in_progress"` // 已分配未批阅
	Checked     int64  `json:"checked"`
}

// ReclaimResponse 手动回收结果
type ReclaimResponse struct {
	LeasesReclaimed int   `json:"leases_reclaimed"`
	ItemsReleased   int   `json:"items_released"`
	ItemsSkipped    int   `json:"items_skipped"`
	LeasesFailed    int   `json:"leases_failed"`
	DurationMS      int64 `json:"duration_ms"`
}
