package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
)

type ReportUseCase struct {
	access    projectAccess
	dashboard *DashboardUseCase
	findings  ports.FindingRepository
	writer    ports.ReportWriter
	now       func() time.Time
}

func NewReportUseCase(
	projects ports.ProjectRepository,
	dashboard *DashboardUseCase,
	findings ports.FindingRepository,
	writer ports.ReportWriter,
) *ReportUseCase {
	return &ReportUseCase{
		access:    projectAccess{projects: projects},
		dashboard: dashboard,
		findings:  findings,
		writer:    writer,
		now:       time.Now,
	}
}

func (uc *ReportUseCase) ContentType() string {
	return uc.writer.ContentType()
}

func (uc *ReportUseCase) ExportFindings(ctx context.Context, scope domain.Scope, projectID string, w io.Writer) error {
	project, err := uc.access.requireRead(ctx, scope, projectID)
	if err != nil {
		return err
	}
	breakdown, _, err := uc.dashboard.FrameworkScores(ctx, scope.TenantID, projectID)
	if err != nil {
		return err
	}
	findings, err := uc.findings.ListByProject(ctx, scope.TenantID, projectID, domain.FindingFilter{})
	if err != nil {
		return fmt.Errorf("list findings: %w", err)
	}

	report := domain.FindingsReport{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		GeneratedAt: uc.now().UTC(),
		Frameworks:  breakdown,
		Findings:    findings,
	}
	if err := uc.writer.WriteFindings(w, report); err != nil {
		return fmt.Errorf("write findings report: %w", err)
	}
	return nil
}
