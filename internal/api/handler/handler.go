package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"osm-eval/backend/internal/service"
	pkgerrors "osm-eval/backend/pkg/errors"
	"osm-eval/backend/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Lease        *LeaseHandler
	Evaluation   *EvaluationHandler
	Reevaluation *ReevaluationHandler
	Entitlement  *EntitlementHandler
	Catalog      *CatalogHandler
	Admin        *AdminHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Lease:        NewLeaseHandler(svc.Lease),
		Evaluation:   NewEvaluationHandler(svc.Evaluation),
		Reevaluation: NewReevaluationHandler(svc.Reevaluation),
		Entitlement:  NewEntitlementHandler(svc.Entitlement),
		Catalog:      NewCatalogHandler(svc.Catalog),
		Admin:        NewAdminHandler(svc.Reclaim),
		Export:       NewExportHandler(svc.Export),
	}
}

// handleStoreError 各模块未识别的错误统一落到这里
// 事务冲突重试耗尽返回 503，客户端可重试；其余一律 500
func handleStoreError(c *gin.Context, err error) {
	if errors.Is(err, pkgerrors.ErrTransactionConflict) {
		response.ServiceUnavailable(c, 10006, "并发冲突，请稍后重试")
		return
	}
	response.InternalError(c)
}
