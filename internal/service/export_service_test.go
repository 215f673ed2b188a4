package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"osm-eval/backend/internal/dto"
)

// ── ExportEvaluations 测试 ──

func TestExportService_ExportEvaluations_NoRecords(t *testing.T) {
	env := newTestEnv(t)
	env.seedItems(t, "PHY101", "MidSem", "A")

	_, _, err := env.svc.Export.ExportEvaluations(context.Background(), &dto.ExportEvaluationsRequest{SubjectCode: "PHY101"})
	if !errors.Is(err, ErrExportNoRecords) {
		t.Errorf("期望 ErrExportNoRecords，实际: %v", err)
	}
}

func TestExportService_ExportEvaluations_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.evaluated(t, "A", 6, 10)
	env.evaluated(t, "B", 7.5, 10)

	req := env.openReevaluation(t, "A")
	if _, err := env.svc.Reevaluation.Assign(ctx, req.RequestID, &dto.AssignReevaluationRequest{EvaluatorID: "R1"}); err != nil {
		t.Fatalf("分配复评失败: %v", err)
	}
	env.clock.Advance(time.Hour)
	if _, err := env.svc.Reevaluation.Submit(ctx, req.RequestID, "R1", &dto.SubmitReevaluationRequest{Score: floatPtr(8)}); err != nil {
		t.Fatalf("提交复评失败: %v", err)
	}

	buf, filename, err := env.svc.Export.ExportEvaluations(ctx, &dto.ExportEvaluationsRequest{SubjectCode: "PHY101", ExamName: "MidSem"})
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if filename != "评分记录_PHY101_20260302.xlsx" {
		t.Errorf("文件名不符: %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("读取 Excel 失败: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("评分记录")
	if err != nil {
		t.Fatalf("读取 Sheet 失败: %v", err)
	}
	// 标题 + 表头 + 2 行数据
	if len(rows) != 4 {
		t.Fatalf("期望 4 行，实际 %d", len(rows))
	}
	if rows[1][0] != "条码" || rows[1][9] != "复评得分" {
		t.Errorf("表头不符: %v", rows[1])
	}
	if rows[2][0] != "A" || rows[2][5] != "6" || rows[2][9] != "8" {
		t.Errorf("A 行不符: %v", rows[2])
	}
	if rows[3][0] != "B" || rows[3][5] != "7.5" || rows[3][9] != "-" {
		t.Errorf("B 行不符: %v", rows[3])
	}
}

func TestColName(t *testing.T) {
	cases := map[int]string{0: "A", 9: "J", 25: "Z", 26: "AA"}
	for idx, want := range cases {
		if got := colName(idx); got != want {
			t.Errorf("colName(%d) = %s, 期望 %s", idx, got, want)
		}
	}
}
