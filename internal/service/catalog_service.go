package service

import (
	"context"

	"go.uber.org/zap"

	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/model"
	"osm-eval/backend/internal/repository"
	"osm-eval/backend/pkg/clock"
)

// CatalogService 答卷池业务接口
// 入库按 barcode 幂等：已存在的答卷跳过，不修改其状态
type CatalogService interface {
	Ingest(ctx context.Context, req *dto.IngestWorkItemsRequest) (*dto.IngestWorkItemsResponse, error)
	List(ctx context.Context, req *dto.WorkItemListRequest) ([]dto.WorkItemResponse, int64, error)
	Progress(ctx context.Context, req *dto.SubjectProgressRequest) (*dto.SubjectProgressResponse, error)
}

type catalogService struct {
	repo   *repository.Repository
	clock  clock.Clock
	logger *zap.Logger
}

// NewCatalogService 创建 CatalogService 实例
func NewCatalogService(repo *repository.Repository, clk clock.Clock, logger *zap.Logger) CatalogService {
	return &catalogService{repo: repo, clock: clk, logger: logger}
}

func (s *catalogService) Ingest(ctx context.Context, req *dto.IngestWorkItemsRequest) (*dto.IngestWorkItemsResponse, error) {
	now := s.clock.Now()

	// 请求内去重，保留首次出现的顺序
	seen := make(map[string]bool, len(req.Items))
	items := make([]model.WorkItem, 0, len(req.Items))
	for _, in := range req.Items {
		if seen[in.Barcode] {
			continue
		}
		seen[in.Barcode] = true
		items = append(items, model.WorkItem{
			Barcode:     in.Barcode,
			SubjectCode: in.SubjectCode,
			ExamName:    in.ExamName,
			BagID:       in.BagID,
			PackID:      in.PackID,
			CreatedAt:   now,
		})
	}

	inserted, err := s.repo.WorkItem.BatchInsert(ctx, items)
	if err != nil {
		s.logger.Error("答卷入库失败", zap.Int("count", len(items)), zap.Error(err))
		return nil, err
	}

	resp := &dto.IngestWorkItemsResponse{
		Submitted: len(req.Items),
		Inserted:  inserted,
		Skipped:   int64(len(req.Items)) - inserted,
	}
	s.logger.Info("答卷入库完成",
		zap.Int("submitted", resp.Submitted),
		zap.Int64("inserted", resp.Inserted),
		zap.Int64("skipped", resp.Skipped),
	)
	return resp, nil
}

func (s *catalogService) List(ctx context.Context, req *dto.WorkItemListRequest) ([]dto.WorkItemResponse, int64, error) {
	filter := repository.WorkItemFilter{
		SubjectCode: req.SubjectCode,
		ExamName:    req.ExamName,
		BagID:       req.BagID,
		Assigned:    req.Assigned,
		Checked:     req.Checked,
	}
	list, total, err := s.repo.WorkItem.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询答卷列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.WorkItemResponse, 0, len(list))
	for _, item := range list {
		result = append(result, dto.WorkItemResponse{
			Barcode:     item.Barcode,
			SubjectCode: item.SubjectCode,
			ExamName:    item.ExamName,
			BagID:       item.BagID,
			PackID:      item.PackID,
			IsAssigned:  item.IsAssigned,
			IsChecked:   item.IsChecked,
			CreatedAt:   dto.FormatTime(item.CreatedAt),
		})
	}
	return result, total, nil
}

func (s *catalogService) Progress(ctx context.Context, req *dto.SubjectProgressRequest) (*dto.SubjectProgressResponse, error) {
	p, err := s.repo.WorkItem.Progress(ctx, req.SubjectCode, req.ExamName)
	if err != nil {
		s.logger.Error("统计科目进度失败", zap.String("subject_code", req.SubjectCode), zap.Error(err))
		return nil, err
	}
	return &dto.SubjectProgressResponse{
		SubjectCode: req.SubjectCode,
		ExamName:    req.ExamName,
		Total:       p.Total,
		Unassigned:  p.Total - p.Assigned,
		InProgress:  p.Assigned - p.Checked,
		Checked:     p.Checked,
	}, nil
}
