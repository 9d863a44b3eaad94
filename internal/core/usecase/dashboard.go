package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
	"github.com/kirillkom/compliance-auditor/internal/core/scoring"
)

// trendRunWindow bounds how many completed runs are read to build the trend.
const trendRunWindow = 200

type DashboardUseCase struct {
	access      projectAccess
	assignments ports.ProjectFrameworkRepository
	frameworks  ports.FrameworkRepository
	findings    ports.FindingRepository
	documents   ports.DocumentRepository
	runs        ports.CheckRunRepository
}

func NewDashboardUseCase(
	projects ports.ProjectRepository,
	assignments ports.ProjectFrameworkRepository,
	frameworks ports.FrameworkRepository,
	findings ports.FindingRepository,
	documents ports.DocumentRepository,
	runs ports.CheckRunRepository,
) *DashboardUseCase {
	return &DashboardUseCase{
		access:      projectAccess{projects: projects},
		assignments: assignments,
		frameworks:  frameworks,
		findings:    findings,
		documents:   documents,
		runs:        runs,
	}
}

func (uc *DashboardUseCase) GetDashboard(ctx context.Context, scope domain.Scope, projectID string) (*domain.Dashboard, error) {
	if _, err := uc.access.requireRead(ctx, scope, projectID); err != nil {
		return nil, err
	}

	breakdown, assignments, err := uc.FrameworkScores(ctx, scope.TenantID, projectID)
	if err != nil {
		return nil, err
	}
	counts, overall := scoring.Overall(assignments)

	runs, err := uc.runs.ListCompleted(ctx, scope.TenantID, projectID, trendRunWindow)
	if err != nil {
		return nil, fmt.Errorf("list completed runs: %w", err)
	}
	findings, err := uc.findings.ListByProject(ctx, scope.TenantID, projectID, domain.FindingFilter{})
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	documentCount, err := uc.documents.CountByProject(ctx, scope.TenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	return &domain.Dashboard{
		ProjectID:     projectID,
		OverallScore:  overall,
		OverallStatus: scoring.Classify(overall),
		Counts:        counts,
		Frameworks:    breakdown,
		Trend:         scoring.Trend(runs, scoring.TrendPoints),
		TopFindings:   scoring.TopPriority(findings, scoring.TopFindingsLimit),
		DocumentCount: documentCount,
		FindingCount:  len(findings),
	}, nil
}

// FrameworkScores returns the per-framework breakdown for active assignments.
func (uc *DashboardUseCase) FrameworkScores(
	ctx context.Context,
	tenantID, projectID string,
) ([]domain.FrameworkScore, []domain.ProjectFramework, error) {
	assignments, err := uc.assignments.ListByProject(ctx, tenantID, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("list framework assignments: %w", err)
	}

	breakdown := make([]domain.FrameworkScore, 0, len(assignments))
	for i := range assignments {
		assignment := assignments[i]
		if !assignment.IsActive {
			continue
		}
		entry := domain.FrameworkScore{
			FrameworkID:    assignment.FrameworkID,
			FrameworkCode:  assignment.FrameworkID,
			Counts:         assignment.Counts(),
			LastAnalyzedAt: assignment.LastAnalyzedAt,
		}
		framework, err := uc.frameworks.GetFramework(ctx, assignment.FrameworkID)
		switch {
		case err == nil:
			entry.FrameworkCode = framework.Code
			entry.FrameworkName = framework.Name
		case !domain.IsKind(err, domain.ErrNotFound):
			return nil, nil, fmt.Errorf("load framework %s: %w", assignment.FrameworkID, err)
		}
		entry.Score = scoring.Score(entry.Counts)
		entry.Status = scoring.Classify(entry.Score)
		breakdown = append(breakdown, entry)
	}
	return breakdown, assignments, nil
}
