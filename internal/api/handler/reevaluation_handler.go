package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/service"
	"osm-eval/backend/pkg/response"
)

// ReevaluationHandler 复评 HTTP 处理器
type ReevaluationHandler struct {
	reevalSvc service.ReevaluationService
}

// NewReevaluationHandler 创建 ReevaluationHandler
func NewReevaluationHandler(reevalSvc service.ReevaluationService) *ReevaluationHandler {
	return &ReevaluationHandler{reevalSvc: reevalSvc}
}

// CreateRequest 发起复评
// POST /api/v1/reevaluations
func (h *ReevaluationHandler) CreateRequest(c *gin.Context) {
	var req dto.CreateReevaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.reevalSvc.CreateRequest(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleReevaluationError(c, err)
		return
	}

	response.Created(c, result)
}

// Assign 分配复评人
// PUT /api/v1/reevaluations/:id/assign
func (h *ReevaluationHandler) Assign(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "复评ID不能为空")
		return
	}

	var req dto.AssignReevaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.reevalSvc.Assign(c.Request.Context(), id, &req)
	if err != nil {
		h.handleReevaluationError(c, err)
		return
	}

	response.OK(c, result)
}

// Submit 提交复评分数
// POST /api/v1/reevaluations/:id/submit
func (h *ReevaluationHandler) Submit(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "复评ID不能为空")
		return
	}

	var req dto.SubmitReevaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	evaluatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.reevalSvc.Submit(c.Request.Context(), id, evaluatorID, &req)
	if err != nil {
		h.handleReevaluationError(c, err)
		return
	}

	response.OK(c, result)
}

// List 复评列表；评阅员只能看到分配给自己的
// GET /api/v1/reevaluations
func (h *ReevaluationHandler) List(c *gin.Context) {
	var req dto.ReevaluationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	list, total, err := h.reevalSvc.List(c.Request.Context(), &req, callerID, role)
	if err != nil {
		h.handleReevaluationError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// handleReevaluationError 统一处理复评模块业务错误
func (h *ReevaluationHandler) handleReevaluationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotYetEvaluated):
		response.Conflict(c, 22001, "该答卷尚未评分，无法发起复评")
	case errors.Is(err, service.ErrReevaluationNotFound):
		response.NotFound(c, 22002, "复评申请不存在")
	case errors.Is(err, service.ErrReevaluationOpen):
		response.Conflict(c, 22003, "该答卷已有未完成的复评")
	case errors.Is(err, service.ErrAlreadyAssigned):
		response.Conflict(c, 22004, "复评申请已分配")
	case errors.Is(err, service.ErrNotInAssignedState):
		response.Conflict(c, 22005, "复评申请不在已分配状态")
	case errors.Is(err, service.ErrNotAssignedToYou):
		response.Forbidden(c, 22006, "该复评未分配给你")
	case errors.Is(err, service.ErrInvalidEvaluation):
		response.BadRequest(c, 22007, "复评分数超出范围")
	default:
		handleStoreError(c, err)
	}
}
