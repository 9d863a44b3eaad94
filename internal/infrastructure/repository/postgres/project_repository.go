package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, name, description, status, created_at, updated_at, is_deleted, deleted_at, deleted_by
FROM projects
WHERE tenant_id = $1 AND id = $2 AND is_deleted = FALSE
`, tenantID, id)

	var p domain.Project
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.Status, &p.CreatedAt, &p.UpdatedAt,
		&p.IsDeleted, &p.DeletedAt, &p.DeletedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get project", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return &p, nil
}

func (r *ProjectRepository) GetMemberRole(ctx context.Context, tenantID, projectID, userID string) (domain.ProjectRole, error) {
	var role string
	err := r.db.QueryRowContext(ctx, `
SELECT role FROM project_members
WHERE tenant_id = $1 AND project_id = $2 AND user_id = $3
`, tenantID, projectID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrNotFound, "get project member", fmt.Errorf("user %s", userID))
		}
		return "", fmt.Errorf("scan project member: %w", err)
	}
	return domain.ProjectRole(role), nil
}

// UserDirectory resolves actor display data for activity entries.
type UserDirectory struct {
	db *sql.DB
}

func NewUserDirectory(db *sql.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) GetUserByID(ctx context.Context, _ string, id string) (*domain.User, error) {
	var u domain.User
	err := d.db.QueryRowContext(ctx, `
SELECT id, first_name, last_name, email FROM users WHERE id = $1
`, id).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get user", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
