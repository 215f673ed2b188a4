package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/service"
	"osm-eval/backend/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportEvaluations 导出评分记录
// GET /api/v1/export/evaluations?subject_code=xxx&exam_name=xxx
func (h *ExportHandler) ExportEvaluations(c *gin.Context) {
	var req dto.ExportEvaluationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	buf, filename, err := h.exportSvc.ExportEvaluations(c.Request.Context(), &req)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoRecords):
		response.NotFound(c, 25001, "没有可导出的评分记录")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		handleStoreError(c, err)
	}
}
