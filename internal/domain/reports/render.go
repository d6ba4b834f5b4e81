package reports

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const sheetName = "GAR"

var columns = []string{"Employee", "Email", "Department", "GAR", "TCR", "Goal progress", "Timeliness", "Quality", "Tasks"}

func (r TeamReport) period() string {
	since, until := "beginning", "now"
	if r.Since != nil {
		since = r.Since.Format("2006-01-02")
	}
	if r.Until != nil {
		until = r.Until.Format("2006-01-02")
	}
	return since + " to " + until
}

func (r Row) cells() []any {
	return []any{r.FullName, r.Email, r.Department, r.GAR, r.Metrics.TCR, r.Metrics.GoalProgress, r.Metrics.Timeliness, r.Metrics.Quality, r.TaskCount}
}

func RenderPDF(report TeamReport) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Goal Achievement Rating")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s", report.period()))
	pdf.Ln(6)
	if report.Department != "" {
		pdf.Cell(0, 7, fmt.Sprintf("Department: %s", report.Department))
		pdf.Ln(6)
	}
	w := report.Weights
	pdf.Cell(0, 7, fmt.Sprintf("Weights: TCR %.2f, goal progress %.2f, timeliness %.2f, quality %.2f", w.TCR, w.GoalProgress, w.Timeliness, w.Quality))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)

	widths := []float64{50, 62, 35, 18, 18, 28, 24, 18, 15}
	pdf.SetFont("Helvetica", "B", 10)
	for i, title := range columns {
		pdf.CellFormat(widths[i], 7, title, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range report.Rows {
		for i, cell := range row.cells() {
			pdf.CellFormat(widths[i], 7, formatCell(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Average GAR: %.4f (%d employees)", report.AverageGAR, len(report.Rows)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func RenderXLSX(report TeamReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}
	header := make([]any, len(columns))
	for i, title := range columns {
		header[i] = title
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, err
	}
	for i, row := range report.Rows {
		cells := row.cells()
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", i+2), &cells); err != nil {
			return nil, err
		}
	}
	summary := len(report.Rows) + 3
	if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", summary), "Average GAR"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheetName, fmt.Sprintf("D%d", summary), report.AverageGAR); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", summary+1), "Period"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheetName, fmt.Sprintf("B%d", summary+1), report.period()); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatCell(v any) string {
	switch value := v.(type) {
	case float64:
		return fmt.Sprintf("%.4g", value)
	default:
		return fmt.Sprint(value)
	}
}
