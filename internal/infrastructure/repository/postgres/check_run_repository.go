package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

type CheckRunRepository struct {
	db *sql.DB
}

func NewCheckRunRepository(db *sql.DB) *CheckRunRepository {
	return &CheckRunRepository{db: db}
}

// ListCompleted returns completed runs newest first.
func (r *CheckRunRepository) ListCompleted(ctx context.Context, tenantID, projectID string, limit int) ([]domain.CheckRun, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, project_id, framework_id, state, started_at, completed_at, duration_ms, compliant_count,
	partially_compliant_count, non_compliant_count, not_assessed_count, score, findings_created, analysis_model,
	error_message, triggered_by, created_at, updated_at, is_deleted, deleted_at, deleted_by
FROM check_runs
WHERE tenant_id = $1 AND project_id = $2 AND state = $3 AND completed_at IS NOT NULL AND is_deleted = FALSE
ORDER BY completed_at DESC
LIMIT $4
`, tenantID, projectID, string(domain.CheckCompleted), limit)
	if err != nil {
		return nil, fmt.Errorf("list completed runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CheckRun, 0)
	for rows.Next() {
		var c domain.CheckRun
		var state string
		err := rows.Scan(
			&c.ID, &c.TenantID, &c.ProjectID, &c.FrameworkID, &state, &c.StartedAt, &c.CompletedAt, &c.DurationMs,
			&c.CompliantCount, &c.PartialCount, &c.NonCompliant, &c.NotAssessed, &c.Score, &c.FindingsCreated,
			&c.AnalysisModel, &c.Error, &c.TriggeredBy, &c.CreatedAt, &c.UpdatedAt,
			&c.IsDeleted, &c.DeletedAt, &c.DeletedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scan check run: %w", err)
		}
		c.State = domain.CheckState(state)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check runs: %w", err)
	}
	return out, nil
}
