package xlsxreport

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

func TestWriteFindingsProducesBothSheets(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assignee := "u-7"
	report := domain.FindingsReport{
		ProjectID:   "p-1",
		ProjectName: "SOC readiness",
		GeneratedAt: now,
		Frameworks: []domain.FrameworkScore{{
			FrameworkID: "fw-1", FrameworkCode: "ISO27001", FrameworkName: "ISO/IEC 27001",
			Score: 70, Status: domain.StatusPartiallyCompliant,
		}},
		Findings: []domain.Finding{{
			Code: "ISO27001-A1B2C3D4", Title: "No access review", FrameworkID: "fw-1",
			Status: domain.StatusNonCompliant, RiskLevel: domain.RiskHigh, WorkflowStatus: domain.WorkflowOpen,
			AssignedTo: &assignee, DueDate: &now, CreatedAt: now,
		}},
	}

	var buf bytes.Buffer
	if err := NewWriter().WriteFindings(&buf, report); err != nil {
		t.Fatalf("WriteFindings() error = %v", err)
	}

	book, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer book.Close()

	rows, err := book.GetRows(findingsSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "ISO27001-A1B2C3D4" || rows[1][2] != "ISO27001" || rows[1][7] != "u-7" {
		t.Fatalf("unexpected findings rows %v", rows)
	}
	project, err := book.GetCellValue(summarySheet, "B1")
	if err != nil || project != "SOC readiness" {
		t.Fatalf("unexpected summary project %q (%v)", project, err)
	}
}
