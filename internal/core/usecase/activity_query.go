package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
)

type ActivityQueryUseCase struct {
	access projectAccess
	store  ports.ActivityLogStore
}

func NewActivityQueryUseCase(projects ports.ProjectRepository, store ports.ActivityLogStore) *ActivityQueryUseCase {
	return &ActivityQueryUseCase{
		access: projectAccess{projects: projects},
		store:  store,
	}
}

// Query returns tenant activity. Members must scope the query to a project
// they belong to; org admins may read the whole tenant history.
func (uc *ActivityQueryUseCase) Query(ctx context.Context, scope domain.Scope, filter domain.ActivityFilter) (domain.ActivityPage, error) {
	if !scope.HasTenant() {
		return domain.ActivityPage{}, domain.WrapError(domain.ErrUnauthorized, "query activity", errors.New("tenant is required"))
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return domain.ActivityPage{}, domain.WrapError(domain.ErrInvalidInput, "query activity", errors.New("to must not be before from"))
	}
	if filter.ProjectID != "" {
		if _, err := uc.access.requireRead(ctx, scope, filter.ProjectID); err != nil {
			return domain.ActivityPage{}, err
		}
	} else if !scope.IsAdmin() {
		return domain.ActivityPage{}, domain.WrapError(domain.ErrForbidden, "query activity", errors.New("project_id is required for non-admin users"))
	}

	filter.TenantID = scope.TenantID
	page, err := uc.store.Query(ctx, filter.Normalize())
	if err != nil {
		return domain.ActivityPage{}, fmt.Errorf("query activity log: %w", err)
	}
	if page.Items == nil {
		page.Items = []domain.ActivityLog{}
	}
	return page, nil
}
