package xlsxreport

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

const (
	summarySheet  = "Summary"
	findingsSheet = "Findings"
	contentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var findingsHeader = []interface{}{
	"Code", "Title", "Framework", "Status", "Risk", "Workflow", "Confidence", "Assigned To",
	"Due Date", "Effort (h)", "Remediation", "Created At",
}

// Writer renders a findings report as an xlsx workbook with a summary sheet
// and one row per finding.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) ContentType() string {
	return contentType
}

func (w *Writer) WriteFindings(out io.Writer, report domain.FindingsReport) error {
	book := excelize.NewFile()
	defer func() {
		_ = book.Close()
	}()

	if err := book.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := book.NewSheet(findingsSheet); err != nil {
		return fmt.Errorf("create findings sheet: %w", err)
	}
	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummary(book, report, bold); err != nil {
		return err
	}
	if err := writeFindings(book, report, bold); err != nil {
		return err
	}
	if err := book.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(book *excelize.File, report domain.FindingsReport, bold int) error {
	rows := [][]interface{}{
		{"Project", report.ProjectName},
		{"Project ID", report.ProjectID},
		{"Generated At", report.GeneratedAt.UTC().Format(time.RFC3339)},
		{},
		{"Framework", "Name", "Score", "Status", "Compliant", "Partial", "Non-Compliant", "Not Assessed", "Last Analyzed"},
	}
	headerRow := len(rows)
	for _, fw := range report.Frameworks {
		rows = append(rows, []interface{}{
			fw.FrameworkCode, fw.FrameworkName, fw.Score, string(fw.Status),
			fw.Counts.Compliant, fw.Counts.Partial, fw.Counts.NonCompliant, fw.Counts.NotAssessed,
			formatTime(fw.LastAnalyzedAt),
		})
	}
	if err := setRows(book, summarySheet, rows); err != nil {
		return err
	}
	if err := book.SetRowStyle(summarySheet, headerRow, headerRow, bold); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}
	return book.SetColWidth(summarySheet, "A", "I", 18)
}

func writeFindings(book *excelize.File, report domain.FindingsReport, bold int) error {
	codes := make(map[string]string, len(report.Frameworks))
	for _, fw := range report.Frameworks {
		codes[fw.FrameworkID] = fw.FrameworkCode
	}

	rows := make([][]interface{}, 0, len(report.Findings)+1)
	rows = append(rows, findingsHeader)
	for _, f := range report.Findings {
		framework := codes[f.FrameworkID]
		if framework == "" {
			framework = f.FrameworkID
		}
		assignee := ""
		if f.AssignedTo != nil {
			assignee = *f.AssignedTo
		}
		rows = append(rows, []interface{}{
			f.Code, f.Title, framework, string(f.Status), string(f.RiskLevel), string(f.WorkflowStatus),
			f.ConfidenceScore, assignee, formatTime(f.DueDate), f.EstimatedEffortHours,
			f.RemediationGuidance, f.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := setRows(book, findingsSheet, rows); err != nil {
		return err
	}
	if err := book.SetRowStyle(findingsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style findings header: %w", err)
	}
	if err := book.AutoFilter(findingsSheet, fmt.Sprintf("A1:L%d", len(rows)), nil); err != nil {
		return fmt.Errorf("findings autofilter: %w", err)
	}
	return book.SetColWidth(findingsSheet, "A", "L", 20)
}

func setRows(book *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		values := row
		if err := book.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
