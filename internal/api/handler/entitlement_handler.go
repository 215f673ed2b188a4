package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/service"
	"osm-eval/backend/pkg/response"
)

// EntitlementHandler 评阅资格 HTTP 处理器
type EntitlementHandler struct {
	entSvc service.EntitlementService
}

// NewEntitlementHandler 创建 EntitlementHandler
func NewEntitlementHandler(entSvc service.EntitlementService) *EntitlementHandler {
	return &EntitlementHandler{entSvc: entSvc}
}

// Grant 授予评阅资格
// POST /api/v1/entitlements
func (h *EntitlementHandler) Grant(c *gin.Context) {
	var req dto.GrantEntitlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.entSvc.Grant(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleEntitlementError(c, err)
		return
	}

	response.OK(c, result)
}

// Revoke 停用评阅资格
// DELETE /api/v1/entitlements/:id
func (h *EntitlementHandler) Revoke(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "资格ID不能为空")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.entSvc.Revoke(c.Request.Context(), id, callerID); err != nil {
		h.handleEntitlementError(c, err)
		return
	}

	response.OK(c, nil)
}

// List 评阅资格列表
// GET /api/v1/entitlements
func (h *EntitlementHandler) List(c *gin.Context) {
	var req dto.EntitlementListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.entSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleEntitlementError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

func (h *EntitlementHandler) handleEntitlementError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEntitlementNotFound):
		response.NotFound(c, 23001, "评阅资格不存在")
	default:
		handleStoreError(c, err)
	}
}
