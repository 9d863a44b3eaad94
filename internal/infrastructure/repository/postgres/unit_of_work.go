package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// UnitOfWork persists a committed tracking session in one transaction.
type UnitOfWork struct {
	db *sql.DB
}

func NewUnitOfWork(db *sql.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) Apply(ctx context.Context, changes []domain.Change) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var versioned []*domain.ProjectFramework
	for _, change := range changes {
		if err := applyChange(ctx, tx, change); err != nil {
			return err
		}
		if assignment, ok := change.Entity.(*domain.ProjectFramework); ok && change.Kind != domain.ChangeCreated {
			versioned = append(versioned, assignment)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	for _, assignment := range versioned {
		assignment.Version++
	}
	return nil
}

func applyChange(ctx context.Context, tx execer, change domain.Change) error {
	created := change.Kind == domain.ChangeCreated
	switch entity := change.Entity.(type) {
	case *domain.Project:
		if created {
			return insertProject(ctx, tx, entity)
		}
		return updateProject(ctx, tx, entity)
	case *domain.Document:
		if created {
			return insertDocument(ctx, tx, entity)
		}
		return updateDocument(ctx, tx, entity)
	case *domain.Finding:
		if created {
			return insertFinding(ctx, tx, entity)
		}
		return updateFinding(ctx, tx, entity)
	case *domain.Evidence:
		if created {
			return insertEvidence(ctx, tx, entity)
		}
		return updateEvidence(ctx, tx, entity)
	case *domain.CheckRun:
		if created {
			return insertCheckRun(ctx, tx, entity)
		}
		return updateCheckRun(ctx, tx, entity)
	case *domain.ProjectFramework:
		if created {
			return insertProjectFramework(ctx, tx, entity)
		}
		return updateProjectFramework(ctx, tx, entity)
	default:
		return domain.WrapError(domain.ErrInvalidInput, "apply change", fmt.Errorf("unsupported entity type %T", change.Entity))
	}
}

// expectOneRow turns a zero-row update into a typed error.
func expectOneRow(result sql.Result, kind error, operation, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(kind, operation, fmt.Errorf("id %s", id))
	}
	return nil
}

func insertProject(ctx context.Context, tx execer, p *domain.Project) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO projects (id, tenant_id, name, description, status, created_at, updated_at, is_deleted, deleted_at, deleted_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, p.ID, p.TenantID, p.Name, p.Description, p.Status, p.CreatedAt, p.UpdatedAt, p.IsDeleted, p.DeletedAt, p.DeletedBy)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func updateProject(ctx context.Context, tx execer, p *domain.Project) error {
	result, err := tx.ExecContext(ctx, `
UPDATE projects
SET name = $3, description = $4, status = $5, updated_at = $6, is_deleted = $7, deleted_at = $8, deleted_by = $9
WHERE tenant_id = $1 AND id = $2
`, p.TenantID, p.ID, p.Name, p.Description, p.Status, p.UpdatedAt, p.IsDeleted, p.DeletedAt, p.DeletedBy)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return expectOneRow(result, domain.ErrNotFound, "update project", p.ID)
}

func insertDocument(ctx context.Context, tx execer, d *domain.Document) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO documents (
	id, tenant_id, project_id, file_name, storage_path, content_type, size_bytes, extracted_text, page_count,
	uploaded_by, created_at, updated_at, is_deleted, deleted_at, deleted_by
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		d.ID, d.TenantID, d.ProjectID, d.FileName, d.StoragePath, d.ContentType, d.SizeBytes,
		nullableString(d.ExtractedText), d.PageCount, nullableString(d.UploadedBy), d.CreatedAt, d.UpdatedAt,
		d.IsDeleted, d.DeletedAt, d.DeletedBy,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func updateDocument(ctx context.Context, tx execer, d *domain.Document) error {
	result, err := tx.ExecContext(ctx, `
UPDATE documents
SET file_name = $3, storage_path = $4, content_type = $5, size_bytes = $6, extracted_text = $7, page_count = $8,
	updated_at = $9, is_deleted = $10, deleted_at = $11, deleted_by = $12
WHERE tenant_id = $1 AND id = $2
`,
		d.TenantID, d.ID, d.FileName, d.StoragePath, d.ContentType, d.SizeBytes, nullableString(d.ExtractedText),
		d.PageCount, d.UpdatedAt, d.IsDeleted, d.DeletedAt, d.DeletedBy,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return expectOneRow(result, domain.ErrNotFound, "update document", d.ID)
}

func insertFinding(ctx context.Context, tx execer, f *domain.Finding) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO findings (
	id, tenant_id, project_id, framework_id, control_id, code, title, description, status, risk_level,
	workflow_status, confidence_score, remediation_guidance, estimated_effort_hours, analysis_version,
	analysis_model, last_analyzed_at, raw_result, assigned_to, due_date, created_at, updated_at,
	is_deleted, deleted_at, deleted_by
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
`,
		f.ID, f.TenantID, f.ProjectID, f.FrameworkID, f.ControlID, f.Code, f.Title, f.Description,
		string(f.Status), string(f.RiskLevel), string(f.WorkflowStatus), f.ConfidenceScore,
		f.RemediationGuidance, f.EstimatedEffortHours, f.AnalysisVersion, f.AnalysisModel, f.LastAnalyzedAt,
		nullableJSON(f.RawResult), f.AssignedTo, f.DueDate, f.CreatedAt, f.UpdatedAt,
		f.IsDeleted, f.DeletedAt, f.DeletedBy,
	)
	if err != nil {
		return fmt.Errorf("insert finding: %w", err)
	}
	return nil
}

func updateFinding(ctx context.Context, tx execer, f *domain.Finding) error {
	result, err := tx.ExecContext(ctx, `
UPDATE findings
SET title = $3, description = $4, status = $5, risk_level = $6, workflow_status = $7, confidence_score = $8,
	remediation_guidance = $9, estimated_effort_hours = $10, analysis_version = $11, analysis_model = $12,
	last_analyzed_at = $13, raw_result = $14, assigned_to = $15, due_date = $16, updated_at = $17,
	is_deleted = $18, deleted_at = $19, deleted_by = $20
WHERE tenant_id = $1 AND id = $2
`,
		f.TenantID, f.ID, f.Title, f.Description, string(f.Status), string(f.RiskLevel), string(f.WorkflowStatus),
		f.ConfidenceScore, f.RemediationGuidance, f.EstimatedEffortHours, f.AnalysisVersion, f.AnalysisModel,
		f.LastAnalyzedAt, nullableJSON(f.RawResult), f.AssignedTo, f.DueDate, f.UpdatedAt,
		f.IsDeleted, f.DeletedAt, f.DeletedBy,
	)
	if err != nil {
		return fmt.Errorf("update finding: %w", err)
	}
	return expectOneRow(result, domain.ErrNotFound, "update finding", f.ID)
}

func insertEvidence(ctx context.Context, tx execer, e *domain.Evidence) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO finding_evidence (
	id, tenant_id, finding_id, document_id, project_id, excerpt, page_reference, section_reference,
	relevance_score, evidence_type, is_manual, created_at, updated_at, is_deleted, deleted_at, deleted_by
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`,
		e.ID, e.TenantID, e.FindingID, e.DocumentID, e.ProjectID, e.Excerpt, e.PageReference, e.SectionReference,
		e.RelevanceScore, string(e.EvidenceType), e.IsManual, e.CreatedAt, e.UpdatedAt,
		e.IsDeleted, e.DeletedAt, e.DeletedBy,
	)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func updateEvidence(ctx context.Context, tx execer, e *domain.Evidence) error {
	result, err := tx.ExecContext(ctx, `
UPDATE finding_evidence
SET excerpt = $3, page_reference = $4, section_reference = $5, relevance_score = $6, evidence_type = $7,
	updated_at = $8, is_deleted = $9, deleted_at = $10, deleted_by = $11
WHERE tenant_id = $1 AND id = $2
`,
		e.TenantID, e.ID, e.Excerpt, e.PageReference, e.SectionReference, e.RelevanceScore, string(e.EvidenceType),
		e.UpdatedAt, e.IsDeleted, e.DeletedAt, e.DeletedBy,
	)
	if err != nil {
		return fmt.Errorf("update evidence: %w", err)
	}
	return expectOneRow(result, domain.ErrNotFound, "update evidence", e.ID)
}

func insertCheckRun(ctx context.Context, tx execer, c *domain.CheckRun) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO check_runs (
	id, tenant_id, project_id, framework_id, state, started_at, completed_at, duration_ms, compliant_count,
	partially_compliant_count, non_compliant_count, not_assessed_count, score, findings_created,
	analysis_model, error_message, triggered_by, created_at, updated_at, is_deleted, deleted_at, deleted_by
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
`,
		c.ID, c.TenantID, c.ProjectID, c.FrameworkID, string(c.State), c.StartedAt, c.CompletedAt, c.DurationMs,
		c.CompliantCount, c.PartialCount, c.NonCompliant, c.NotAssessed, c.Score, c.FindingsCreated,
		c.AnalysisModel, c.Error, c.TriggeredBy, c.CreatedAt, c.UpdatedAt, c.IsDeleted, c.DeletedAt, c.DeletedBy,
	)
	if err != nil {
		return fmt.Errorf("insert check run: %w", err)
	}
	return nil
}

func updateCheckRun(ctx context.Context, tx execer, c *domain.CheckRun) error {
	result, err := tx.ExecContext(ctx, `
UPDATE check_runs
SET state = $3, started_at = $4, completed_at = $5, duration_ms = $6, compliant_count = $7,
	partially_compliant_count = $8, non_compliant_count = $9, not_assessed_count = $10, score = $11,
	findings_created = $12, analysis_model = $13, error_message = $14, updated_at = $15,
	is_deleted = $16, deleted_at = $17, deleted_by = $18
WHERE tenant_id = $1 AND id = $2
`,
		c.TenantID, c.ID, string(c.State), c.StartedAt, c.CompletedAt, c.DurationMs, c.CompliantCount,
		c.PartialCount, c.NonCompliant, c.NotAssessed, c.Score, c.FindingsCreated, c.AnalysisModel, c.Error,
		c.UpdatedAt, c.IsDeleted, c.DeletedAt, c.DeletedBy,
	)
	if err != nil {
		return fmt.Errorf("update check run: %w", err)
	}
	return expectOneRow(result, domain.ErrNotFound, "update check run", c.ID)
}

func insertProjectFramework(ctx context.Context, tx execer, p *domain.ProjectFramework) error {
	if p.Version == 0 {
		p.Version = 1
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO project_frameworks (
	id, tenant_id, project_id, framework_id, is_active, compliant_count, partially_compliant_count,
	non_compliant_count, not_assessed_count, compliance_percentage, last_analyzed_by, last_analyzed_at,
	version, created_at, updated_at, is_deleted, deleted_at, deleted_by
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`,
		p.ID, p.TenantID, p.ProjectID, p.FrameworkID, p.IsActive, p.CompliantCount, p.PartialCount,
		p.NonCompliantCount, p.NotAssessedCount, p.CompliancePercentage, p.LastAnalyzedBy, p.LastAnalyzedAt,
		p.Version, p.CreatedAt, p.UpdatedAt, p.IsDeleted, p.DeletedAt, p.DeletedBy,
	)
	if err != nil {
		return fmt.Errorf("insert project framework: %w", err)
	}
	return nil
}

// updateProjectFramework only succeeds when the row still carries the version
// the caller loaded; otherwise a concurrent run committed first.
func updateProjectFramework(ctx context.Context, tx execer, p *domain.ProjectFramework) error {
	result, err := tx.ExecContext(ctx, `
UPDATE project_frameworks
SET is_active = $4, compliant_count = $5, partially_compliant_count = $6, non_compliant_count = $7,
	not_assessed_count = $8, compliance_percentage = $9, last_analyzed_by = $10, last_analyzed_at = $11,
	updated_at = $12, is_deleted = $13, deleted_at = $14, deleted_by = $15, version = version + 1
WHERE tenant_id = $1 AND id = $2 AND version = $3
`,
		p.TenantID, p.ID, p.Version, p.IsActive, p.CompliantCount, p.PartialCount, p.NonCompliantCount,
		p.NotAssessedCount, p.CompliancePercentage, p.LastAnalyzedBy, p.LastAnalyzedAt, p.UpdatedAt,
		p.IsDeleted, p.DeletedAt, p.DeletedBy,
	)
	if err != nil {
		return fmt.Errorf("update project framework: %w", err)
	}
	return expectOneRow(result, domain.ErrConcurrencyConflict, "update project framework", p.ID)
}
