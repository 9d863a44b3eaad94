package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
)

// projectAccess resolves the caller's effective role on a project. Org admins
// act as owners of every project in their tenant.
type projectAccess struct {
	projects ports.ProjectRepository
}

func (a projectAccess) resolve(ctx context.Context, scope domain.Scope, projectID string) (*domain.Project, domain.ProjectRole, error) {
	if !scope.HasTenant() {
		return nil, "", domain.WrapError(domain.ErrUnauthorized, "resolve project access", errors.New("tenant is required"))
	}
	project, err := a.projects.GetByID(ctx, scope.TenantID, projectID)
	if err != nil {
		return nil, "", fmt.Errorf("load project: %w", err)
	}
	if scope.IsAdmin() {
		return project, domain.ProjectRoleOwner, nil
	}
	if scope.Actor() == nil {
		return nil, "", domain.WrapError(domain.ErrUnauthorized, "resolve project access", errors.New("actor is required"))
	}
	role, err := a.projects.GetMemberRole(ctx, scope.TenantID, projectID, scope.ActorID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, "", domain.WrapError(domain.ErrForbidden, "resolve project access", errors.New("not a project member"))
		}
		return nil, "", fmt.Errorf("load project membership: %w", err)
	}
	return project, role, nil
}

func (a projectAccess) requireRead(ctx context.Context, scope domain.Scope, projectID string) (*domain.Project, error) {
	project, _, err := a.resolve(ctx, scope, projectID)
	return project, err
}

func (a projectAccess) requireWrite(ctx context.Context, scope domain.Scope, projectID string) (*domain.Project, error) {
	project, role, err := a.resolve(ctx, scope, projectID)
	if err != nil {
		return nil, err
	}
	if !role.CanWrite() {
		return nil, domain.WrapError(domain.ErrForbidden, "resolve project access", fmt.Errorf("role %s is read-only", role))
	}
	return project, nil
}
