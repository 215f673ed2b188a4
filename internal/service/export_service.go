package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"osm-eval/backend/internal/dto"
	"osm-eval/backend/internal/repository"
	"osm-eval/backend/pkg/clock"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoRecords    = errors.New("没有可导出的评分记录")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出评分记录为 Excel (.xlsx)，每份答卷一行
//   - 已完成复评的答卷附带最近一次复评分数
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportEvaluations 按科目/考试导出评分记录
	ExportEvaluations(ctx context.Context, req *dto.ExportEvaluationsRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	clock  clock.Clock
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, clk clock.Clock, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, clock: clk, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportEvaluations — 导出评分记录为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "评分记录"
//   - 第 1 行标题，第 2 行表头，第 3 行起为数据
//   - 列：条码 | 科目 | 考试 | 袋号 | 包号 | 得分 | 满分 | 评阅员 | 评阅时间 | 复评得分 | 状态
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

var exportHeaders = []string{"条码", "科目", "考试", "袋号", "包号", "得分", "满分", "评阅员", "评阅时间", "复评得分", "状态"}

func (s *exportService) ExportEvaluations(ctx context.Context, req *dto.ExportEvaluationsRequest) (*bytes.Buffer, string, error) {
	// 1. 查询评分记录
	rows, err := s.repo.Evaluation.ListForExport(ctx, req.SubjectCode, req.ExamName)
	if err != nil {
		s.logger.Error("查询评分记录失败", zap.Error(err))
		return nil, "", err
	}
	if len(rows) == 0 {
		return nil, "", ErrExportNoRecords
	}

	// 2. 查询复评结果
	barcodes := make([]string, len(rows))
	for i := range rows {
		barcodes[i] = rows[i].Barcode
	}
	reevaluated, err := s.repo.Reevaluation.LatestCompletedByBarcodes(ctx, barcodes)
	if err != nil {
		s.logger.Error("查询复评结果失败", zap.Error(err))
		return nil, "", err
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "评分记录"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "E", 14)
	f.SetColWidth(sheetName, "F", "G", 8)
	f.SetColWidth(sheetName, "H", "I", 22)
	f.SetColWidth(sheetName, "J", "K", 10)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	title := "评分记录"
	if req.SubjectCode != "" {
		title = fmt.Sprintf("%s %s 评分记录", req.SubjectCode, req.ExamName)
	}
	f.SetCellValue(sheetName, "A1", title)
	f.MergeCell(sheetName, "A1", cell(colName(len(exportHeaders)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range exportHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(exportHeaders)-1), 2), headerStyle)

	// 数据行
	row := 3
	for _, r := range rows {
		status := "有效"
		if r.IsVoided {
			status = "已作废"
		}
		values := []interface{}{
			r.Barcode, r.SubjectCode, r.ExamName, r.BagID, r.PackID,
			r.Score, r.MaxScore, r.EvaluatorID, dto.FormatTime(r.EvaluatedAt), "-", status,
		}
		if re, ok := reevaluated[r.Barcode]; ok && re.ReevaluatedScore != nil {
			values[9] = *re.ReevaluatedScore
		}
		for i, v := range values {
			f.SetCellValue(sheetName, cell(colName(i), row), v)
		}
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("评分记录_%s.xlsx", s.clock.Now().Format("20060102"))
	if req.SubjectCode != "" {
		filename = fmt.Sprintf("评分记录_%s_%s.xlsx", req.SubjectCode, s.clock.Now().Format("20060102"))
	}
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
