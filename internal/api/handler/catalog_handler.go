package handler

import (
	"github.com/gin-gonic/gin"

	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/service"
	"osm-eval/backend/pkg/response"
)

// CatalogHandler 答卷池 HTTP 处理器
type CatalogHandler struct {
	catalogSvc service.CatalogService
}

// NewCatalogHandler 创建 CatalogHandler
func NewCatalogHandler(catalogSvc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogSvc: catalogSvc}
}

// Ingest 批量入库答卷，按条码幂等
// POST /api/v1/catalog/items
func (h *CatalogHandler) Ingest(c *gin.Context) {
	var req dto.IngestWorkItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.catalogSvc.Ingest(c.Request.Context(), &req)
	if err != nil {
		handleStoreError(c, err)
		return
	}

	response.OK(c, result)
}

// List 答卷列表
// GET /api/v1/catalog/items
func (h *CatalogHandler) List(c *gin.Context) {
	var req dto.WorkItemListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.catalogSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleStoreError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Progress 科目评阅进度
// GET /api/v1/catalog/progress?subject_code=xxx&exam_name=xxx
func (h *CatalogHandler) Progress(c *gin.Context) {
	var req dto.SubjectProgressRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.catalogSvc.Progress(c.Request.Context(), &req)
	if err != nil {
		handleStoreError(c, err)
		return
	}

	response.OK(c, result)
}
