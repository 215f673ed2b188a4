package handler

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/service"
	"osm-eval/backend/pkg/response"
)

// EvaluationHandler 评分提交 HTTP 处理器
type EvaluationHandler struct {
	evalSvc service.EvaluationService
}

// NewEvaluationHandler 创建 EvaluationHandler
func NewEvaluationHandler(evalSvc service.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{evalSvc: evalSvc}
}

// Commit 提交评分与批注
// POST /api/v1/evaluations
func (h *EvaluationHandler) Commit(c *gin.Context) {
	var req dto.CommitEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	evaluatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	// 批注以 {schema_version, data} 信封整体落库，引擎不解析 data
	annotations, err := json.Marshal(req.Annotations)
	if err != nil {
		response.BadRequest(c, 21004, "批注数据格式无效")
		return
	}
	var overlay []byte
	if req.Overlay != nil {
		if overlay, err = json.Marshal(req.Overlay); err != nil {
			response.BadRequest(c, 21004, "叠加层数据格式无效")
			return
		}
	}

	result, err := h.evalSvc.Commit(c.Request.Context(), &service.CommitInput{
		Barcode:     req.Barcode,
		EvaluatorID: evaluatorID,
		Score:       *req.Score,
		MaxScore:    req.MaxScore,
		Annotations: annotations,
		Overlay:     overlay,
	})
	if err != nil {
		h.handleEvaluationError(c, err)
		return
	}

	response.Created(c, result)
}

// GetEvaluation 查询答卷评分
// GET /api/v1/evaluations/:barcode
func (h *EvaluationHandler) GetEvaluation(c *gin.Context) {
	barcode := c.Param("barcode")
	if barcode == "" {
		response.BadRequest(c, 10001, "条码不能为空")
		return
	}

	result, err := h.evalSvc.GetEvaluation(c.Request.Context(), barcode)
	if err != nil {
		h.handleEvaluationError(c, err)
		return
	}

	response.OK(c, result)
}

// handleEvaluationError 统一处理评分模块业务错误
func (h *EvaluationHandler) handleEvaluationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAlreadyEvaluated):
		response.Conflict(c, 21001, "该答卷已评分，不可重复提交")
	case errors.Is(err, service.ErrWorkItemNotFound):
		response.NotFound(c, 21002, "答卷不存在")
	case errors.Is(err, service.ErrEvaluationNotFound):
		response.NotFound(c, 21003, "评分记录不存在")
	case errors.Is(err, service.ErrInvalidEvaluation):
		response.BadRequest(c, 21004, "评分数据无效")
	default:
		handleStoreError(c, err)
	}
}
