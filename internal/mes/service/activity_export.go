package service

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var historyExportHeaders = map[string][]string{
	"en": {"Time", "Employee ID", "Employee", "Resource", "Action", "Break Code", "Break Reason", "Notes"},
	"zh": {"时间", "员工编号", "员工", "机台", "动作", "停机代码", "停机原因", "备注"},
	"tr": {"Zaman", "Personel No", "Personel", "Kaynak", "İşlem", "Duruş Kodu", "Duruş Nedeni", "Not"},
}

// ExportHistory 导出订单作业历史为xlsx
func (s *ActivityService) ExportHistory(ctx context.Context, orderID int64, lang string) (*excelize.File, string, error) {
	items, err := s.GetHistory(ctx, orderID, lang)
	if err != nil {
		return nil, "", err
	}

	headers, ok := historyExportHeaders[lang]
	if !ok {
		headers = historyExportHeaders["en"]
	}

	f := excelize.NewFile()
	sheet := "Activities"
	f.SetSheetName("Sheet1", sheet)

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for idx, item := range items {
		row := idx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), item.StartedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), item.EmployeeID)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), item.EmployeeName)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), item.ResourceCode)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), item.ProcessLabel)
		if item.BreakCode != nil {
			f.SetCellValue(sheet, fmt.Sprintf("F%d", row), *item.BreakCode)
		}
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), item.BreakReason)
		if item.Notes != nil {
			f.SetCellValue(sheet, fmt.Sprintf("H%d", row), *item.Notes)
		}
	}

	colWidths := []float64{20, 12, 20, 12, 14, 12, 20, 30}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("activities_WO%d.xlsx", orderID)
	return f, filename, nil
}
