package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
)

const findingColumns = `id, tenant_id, project_id, framework_id, control_id, code, title, description, status, risk_level,
	workflow_status, confidence_score, remediation_guidance, estimated_effort_hours, analysis_version, analysis_model,
	last_analyzed_at, raw_result, assigned_to, due_date, created_at, updated_at, is_deleted, deleted_at, deleted_by`

const evidenceColumns = `id, tenant_id, finding_id, document_id, project_id, excerpt, page_reference, section_reference,
	relevance_score, evidence_type, is_manual, created_at, updated_at, is_deleted, deleted_at, deleted_by`

type FindingRepository struct {
	db       *sql.DB
	unscoped bool
}

func NewFindingRepository(db *sql.DB) *FindingRepository {
	return &FindingRepository{db: db}
}

func (r *FindingRepository) Unscoped() ports.FindingRepository {
	return &FindingRepository{db: r.db, unscoped: true}
}

func (r *FindingRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Finding, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+findingColumns+`
FROM findings
WHERE tenant_id = $1 AND id = $2`+visibilityClause("", r.unscoped), tenantID, id)

	finding, err := scanFinding(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get finding", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan finding: %w", err)
	}
	return &finding, nil
}

func (r *FindingRepository) ListByProject(
	ctx context.Context,
	tenantID, projectID string,
	filter domain.FindingFilter,
) ([]domain.Finding, error) {
	args := []interface{}{tenantID, projectID}
	var where strings.Builder
	where.WriteString("tenant_id = $1 AND project_id = $2")
	where.WriteString(visibilityClause("", r.unscoped))
	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where.WriteString(" AND " + column + " = $" + strconv.Itoa(len(args)))
	}
	addFilter("framework_id", filter.FrameworkID)
	addFilter("workflow_status", string(filter.WorkflowStatus))
	addFilter("risk_level", string(filter.RiskLevel))

	rows, err := r.db.QueryContext(ctx, `
SELECT `+findingColumns+`
FROM findings
WHERE `+where.String()+`
ORDER BY created_at DESC, code ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Finding, 0)
	for rows.Next() {
		finding, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		out = append(out, finding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	return out, nil
}

func (r *FindingRepository) CountByProject(ctx context.Context, tenantID, projectID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM findings
WHERE tenant_id = $1 AND project_id = $2`+visibilityClause("", r.unscoped), tenantID, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count findings: %w", err)
	}
	return count, nil
}

func (r *FindingRepository) Exists(ctx context.Context, tenantID, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM findings WHERE tenant_id = $1 AND id = $2`+visibilityClause("", r.unscoped)+`)`,
		tenantID, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("finding exists: %w", err)
	}
	return exists, nil
}

func (r *FindingRepository) ListEvidence(ctx context.Context, tenantID, findingID string) ([]domain.Evidence, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+evidenceColumns+`
FROM finding_evidence
WHERE tenant_id = $1 AND finding_id = $2`+visibilityClause("", r.unscoped)+`
ORDER BY relevance_score DESC, id ASC`, tenantID, findingID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Evidence, 0)
	for rows.Next() {
		var e domain.Evidence
		var evidenceType string
		err := rows.Scan(
			&e.ID, &e.TenantID, &e.FindingID, &e.DocumentID, &e.ProjectID, &e.Excerpt, &e.PageReference,
			&e.SectionReference, &e.RelevanceScore, &evidenceType, &e.IsManual, &e.CreatedAt, &e.UpdatedAt,
			&e.IsDeleted, &e.DeletedAt, &e.DeletedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		e.EvidenceType = domain.ParseEvidenceType(evidenceType)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return out, nil
}

func scanFinding(row rowScanner) (domain.Finding, error) {
	var f domain.Finding
	var status, risk, workflow string
	var raw []byte
	err := row.Scan(
		&f.ID, &f.TenantID, &f.ProjectID, &f.FrameworkID, &f.ControlID, &f.Code, &f.Title, &f.Description,
		&status, &risk, &workflow, &f.ConfidenceScore, &f.RemediationGuidance, &f.EstimatedEffortHours,
		&f.AnalysisVersion, &f.AnalysisModel, &f.LastAnalyzedAt, &raw, &f.AssignedTo, &f.DueDate,
		&f.CreatedAt, &f.UpdatedAt, &f.IsDeleted, &f.DeletedAt, &f.DeletedBy,
	)
	if err != nil {
		return domain.Finding{}, err
	}
	f.Status = domain.ComplianceStatus(status)
	f.RiskLevel = domain.RiskLevel(risk)
	f.WorkflowStatus = domain.WorkflowStatus(workflow)
	if len(raw) > 0 {
		f.RawResult = append([]byte(nil), raw...)
	}
	return f, nil
}
