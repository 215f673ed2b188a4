package service

import (
	"go.uber.org/zap"

	"osm-eval/backend/config"
	"osm-eval/backend/internal/repository"
	"osm-eval/backend/pkg/clock"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Lease        LeaseService
	Evaluation   EvaluationService
	Reclaim      ReclaimService
	Reevaluation ReevaluationService
	Entitlement  EntitlementService
	Catalog      CatalogService
	Export       ExportService
}

// NewService 创建 Service 聚合
// clk 为整个引擎统一的时间源，生产环境传 clock.Real{}
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	clk clock.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		Lease:        NewLeaseService(&cfg.Lease, repo, clk, logger),
		Evaluation:   NewEvaluationService(repo, clk, logger),
		Reclaim:      NewReclaimService(repo, clk, logger),
		Reevaluation: NewReevaluationService(repo, clk, logger),
		Entitlement:  NewEntitlementService(repo, clk, logger),
		Catalog:      NewCatalogService(repo, clk, logger),
		Export:       NewExportService(repo, clk, logger),
	}
}
