package handler

import (
	"github.com/gin-gonic/gin"

	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/service"
	"osm-eval/backend/pkg/response"
)

// AdminHandler 运维操作 HTTP 处理器
type AdminHandler struct {
	reclaimSvc service.ReclaimService
}

// NewAdminHandler 创建 AdminHandler
func NewAdminHandler(reclaimSvc service.ReclaimService) *AdminHandler {
	return &AdminHandler{reclaimSvc: reclaimSvc}
}

// Reclaim 立即执行一次过期回收，与定时任务互不影响
// POST /api/v1/admin/reclaim
func (h *AdminHandler) Reclaim(c *gin.Context) {
	result, err := h.reclaimSvc.Sweep(c.Request.Context())
	if err != nil {
		handleStoreError(c, err)
		return
	}

	response.OK(c, dto.ReclaimResponse{
		LeasesReclaimed: result.LeasesReclaimed,
		ItemsReleased:   result.ItemsReleased,
		ItemsSkipped:    result.ItemsSkipped,
		LeasesFailed:    result.LeasesFailed,
		DurationMS:      result.Duration.Milliseconds(),
	})
}
