package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

// FrameworkRepository serves framework and control reference data.
type FrameworkRepository struct {
	db *sql.DB
}

func NewFrameworkRepository(db *sql.DB) *FrameworkRepository {
	return &FrameworkRepository{db: db}
}

func (r *FrameworkRepository) GetFramework(ctx context.Context, id string) (*domain.Framework, error) {
	var f domain.Framework
	err := r.db.QueryRowContext(ctx, `
SELECT id, code, name, version, description, is_active FROM frameworks WHERE id = $1
`, id).Scan(&f.ID, &f.Code, &f.Name, &f.Version, &f.Description, &f.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get framework", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan framework: %w", err)
	}
	return &f, nil
}

func (r *FrameworkRepository) ListFrameworks(ctx context.Context) ([]domain.Framework, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, code, name, version, description, is_active FROM frameworks ORDER BY code ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list frameworks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Framework, 0)
	for rows.Next() {
		var f domain.Framework
		if err := rows.Scan(&f.ID, &f.Code, &f.Name, &f.Version, &f.Description, &f.IsActive); err != nil {
			return nil, fmt.Errorf("scan framework: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frameworks: %w", err)
	}
	return out, nil
}

func (r *FrameworkRepository) ListControls(ctx context.Context, frameworkID string) ([]domain.Control, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, framework_id, code, title, description, guidance, is_mandatory, default_risk_level
FROM controls
WHERE framework_id = $1
ORDER BY code ASC
`, frameworkID)
	if err != nil {
		return nil, fmt.Errorf("list controls: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Control, 0)
	for rows.Next() {
		var c domain.Control
		var risk string
		if err := rows.Scan(&c.ID, &c.FrameworkID, &c.Code, &c.Title, &c.Description, &c.Guidance, &c.IsMandatory, &risk); err != nil {
			return nil, fmt.Errorf("scan control: %w", err)
		}
		c.DefaultRiskLevel = domain.RiskLevel(risk)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate controls: %w", err)
	}
	return out, nil
}

// SaveCatalog upserts a framework and its controls in one transaction.
func (r *FrameworkRepository) SaveCatalog(ctx context.Context, catalog domain.FrameworkCatalog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	f := catalog.Framework
	_, err = tx.ExecContext(ctx, `
INSERT INTO frameworks (id, code, name, version, description, is_active)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE
SET code = EXCLUDED.code, name = EXCLUDED.name, version = EXCLUDED.version,
	description = EXCLUDED.description, is_active = EXCLUDED.is_active
`, f.ID, f.Code, f.Name, f.Version, f.Description, f.IsActive)
	if err != nil {
		return fmt.Errorf("upsert framework: %w", err)
	}

	for _, c := range catalog.Controls {
		_, err := tx.ExecContext(ctx, `
INSERT INTO controls (id, framework_id, code, title, description, guidance, is_mandatory, default_risk_level)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE
SET code = EXCLUDED.code, title = EXCLUDED.title, description = EXCLUDED.description,
	guidance = EXCLUDED.guidance, is_mandatory = EXCLUDED.is_mandatory,
	default_risk_level = EXCLUDED.default_risk_level
`, c.ID, f.ID, c.Code, c.Title, c.Description, c.Guidance, c.IsMandatory, string(c.DefaultRiskLevel))
		if err != nil {
			return fmt.Errorf("upsert control %s: %w", c.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog tx: %w", err)
	}
	return nil
}

const projectFrameworkColumns = `id, tenant_id, project_id, framework_id, is_active, compliant_count,
	partially_compliant_count, non_compliant_count, not_assessed_count, compliance_percentage, last_analyzed_by,
	last_analyzed_at, version, created_at, updated_at, is_deleted, deleted_at, deleted_by`

type ProjectFrameworkRepository struct {
	db *sql.DB
}

func NewProjectFrameworkRepository(db *sql.DB) *ProjectFrameworkRepository {
	return &ProjectFrameworkRepository{db: db}
}

func (r *ProjectFrameworkRepository) Get(ctx context.Context, tenantID, projectID, frameworkID string) (*domain.ProjectFramework, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+projectFrameworkColumns+`
FROM project_frameworks
WHERE tenant_id = $1 AND project_id = $2 AND framework_id = $3 AND is_deleted = FALSE
`, tenantID, projectID, frameworkID)

	assignment, err := scanProjectFramework(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get project framework",
				fmt.Errorf("project %s framework %s", projectID, frameworkID))
		}
		return nil, fmt.Errorf("scan project framework: %w", err)
	}
	return &assignment, nil
}

func (r *ProjectFrameworkRepository) ListByProject(ctx context.Context, tenantID, projectID string) ([]domain.ProjectFramework, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+projectFrameworkColumns+`
FROM project_frameworks
WHERE tenant_id = $1 AND project_id = $2 AND is_deleted = FALSE
ORDER BY framework_id ASC
`, tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project frameworks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ProjectFramework, 0)
	for rows.Next() {
		assignment, err := scanProjectFramework(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project framework: %w", err)
		}
		out = append(out, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project frameworks: %w", err)
	}
	return out, nil
}

func scanProjectFramework(row rowScanner) (domain.ProjectFramework, error) {
	var p domain.ProjectFramework
	err := row.Scan(
		&p.ID, &p.TenantID, &p.ProjectID, &p.FrameworkID, &p.IsActive, &p.CompliantCount, &p.PartialCount,
		&p.NonCompliantCount, &p.NotAssessedCount, &p.CompliancePercentage, &p.LastAnalyzedBy, &p.LastAnalyzedAt,
		&p.Version, &p.CreatedAt, &p.UpdatedAt, &p.IsDeleted, &p.DeletedAt, &p.DeletedBy,
	)
	return p, err
}
