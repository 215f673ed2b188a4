package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/service"
	"osm-eval/backend/pkg/response"
)

// LeaseHandler 批次租约 HTTP 处理器
type LeaseHandler struct {
	leaseSvc service.LeaseService
}

// NewLeaseHandler 创建 LeaseHandler
func NewLeaseHandler(leaseSvc service.LeaseService) *LeaseHandler {
	return &LeaseHandler{leaseSvc: leaseSvc}
}

// RequestLease 领取批次；已有未过期批次时原样返回
// POST /api/v1/leases
func (h *LeaseHandler) RequestLease(c *gin.Context) {
	var req dto.RequestLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	evaluatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	lease, err := h.leaseSvc.RequestLease(c.Request.Context(), evaluatorID, &req)
	if err != nil {
		h.handleLeaseError(c, err)
		return
	}

	if lease.Reused {
		response.OK(c, lease)
		return
	}
	response.Created(c, lease)
}

// GetActiveLease 查询当前批次
// GET /api/v1/leases/active?subject_code=xxx
func (h *LeaseHandler) GetActiveLease(c *gin.Context) {
	var req dto.ActiveLeaseRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	evaluatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.leaseSvc.GetActiveLease(c.Request.Context(), evaluatorID, req.SubjectCode)
	if err != nil {
		h.handleLeaseError(c, err)
		return
	}

	response.OK(c, result)
}

// StartItem 开始评阅某份答卷，顺延所属批次的有效期
// POST /api/v1/leases/items/:barcode/start
func (h *LeaseHandler) StartItem(c *gin.Context) {
	barcode := c.Param("barcode")
	if barcode == "" {
		response.BadRequest(c, 10001, "条码不能为空")
		return
	}

	evaluatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.leaseSvc.RenewOnStart(c.Request.Context(), evaluatorID, barcode)
	if err != nil {
		h.handleLeaseError(c, err)
		return
	}

	response.OK(c, result)
}

// GetStats 评阅员个人统计
// GET /api/v1/leases/stats?subject_code=xxx
func (h *LeaseHandler) GetStats(c *gin.Context) {
	var req dto.LeaseStatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	evaluatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	stats, err := h.leaseSvc.Stats(c.Request.Context(), evaluatorID, req.SubjectCode)
	if err != nil {
		h.handleLeaseError(c, err)
		return
	}

	response.OK(c, stats)
}

// handleLeaseError 统一处理租约模块业务错误
func (h *LeaseHandler) handleLeaseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotEntitled):
		response.Forbidden(c, 20001, "没有该科目的评阅资格")
	case errors.Is(err, service.ErrNoWorkAvailable):
		response.NotFound(c, 20002, "当前没有待评阅的答卷")
	case errors.Is(err, service.ErrNotLeased):
		response.NotFound(c, 20003, "该答卷不在你的当前批次中")
	default:
		handleStoreError(c, err)
	}
}
