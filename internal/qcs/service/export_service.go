package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/bitfantasy/qcs/internal/qcs/access"
	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"github.com/bitfantasy/qcs/internal/qcs/repository"
	"github.com/xuri/excelize/v2"
)

// ExportHeaders 导出列顺序固定
var ExportHeaders = []string{
	"Issue",
	"Date/time",
	"Status",
	"Type of form",
	"Supplier Name",
	"Item No",
	"Affected Item",
	"Issue Type",
	"Description",
	"Created By",
}

const exportTimeLayout = "2006-01-02 15:04:05"

// ExportService 问题导出
type ExportService struct {
	issueRepo *repository.IssueRepository
	gate      *access.Gate
}

func NewExportService(issueRepo *repository.IssueRepository, gate *access.Gate) *ExportService {
	return &ExportService{issueRepo: issueRepo, gate: gate}
}

// Rows 按筛选条件生成导出行（不含表头）
func (s *ExportService) Rows(ctx context.Context, p *access.Principal, f repository.IssueFilter) ([][]string, error) {
	if err := s.gate.Require(p, access.IssueExport); err != nil {
		return nil, err
	}

	items, err := s.issueRepo.FindAllUnpaged(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("export issues: %w", err)
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, exportRow(it))
	}
	return rows, nil
}

func exportRow(it entity.IssueListItem) []string {
	formType := "Vehicle check"
	if it.CheckType == entity.CheckTypeProduct {
		formType = "Quality check"
	}
	return []string{
		it.IssueNumber,
		it.CreatedAt.Local().Format(exportTimeLayout),
		it.Status,
		formType,
		deref(it.SupplierName),
		it.ItemNo,
		it.AffectedItem,
		it.IssueType,
		it.Description,
		deref(it.CreatedByName),
	}
}

// WriteCSV 写出表头和数据行
func WriteCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeaders); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// CSVFilename issues-export-<毫秒时间戳>.csv
func CSVFilename(now time.Time) string {
	return fmt.Sprintf("issues-export-%d.csv", now.UnixMilli())
}

// XLSX 生成Excel导出
func (s *ExportService) XLSX(ctx context.Context, p *access.Principal, f repository.IssueFilter) (*excelize.File, string, error) {
	rows, err := s.Rows(ctx, p, f)
	if err != nil {
		return nil, "", err
	}

	x := excelize.NewFile()
	sheet := "Issues"
	x.SetSheetName("Sheet1", sheet)

	// 表头样式: 加粗
	boldStyle, _ := x.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range ExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		x.SetCellValue(sheet, cell, h)
		x.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			x.SetCellValue(sheet, cell, v)
		}
	}

	colWidths := []float64{10, 20, 22, 14, 24, 14, 24, 18, 50, 20}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		x.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("issues-export-%d.xlsx", time.Now().UnixMilli())
	return x, filename, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
