package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
	"github.com/kirillkom/compliance-auditor/internal/core/tracking"
)

type FindingUseCase struct {
	access    projectAccess
	findings  ports.FindingRepository
	committer ports.ChangeCommitter
	recorder  ports.LifecycleRecorder
}

func NewFindingUseCase(
	projects ports.ProjectRepository,
	findings ports.FindingRepository,
	committer ports.ChangeCommitter,
	recorder ports.LifecycleRecorder,
) *FindingUseCase {
	return &FindingUseCase{
		access:    projectAccess{projects: projects},
		findings:  findings,
		committer: committer,
		recorder:  recorder,
	}
}

// List returns project findings. Soft-deleted findings are only visible to
// org admins that ask for them explicitly.
func (uc *FindingUseCase) List(
	ctx context.Context,
	scope domain.Scope,
	projectID string,
	filter domain.FindingFilter,
	includeDeleted bool,
) ([]domain.Finding, error) {
	if _, err := uc.access.requireRead(ctx, scope, projectID); err != nil {
		return nil, err
	}
	repo := uc.findings
	if includeDeleted {
		if !scope.IsAdmin() {
			return nil, domain.WrapError(domain.ErrForbidden, "list findings", errors.New("include_deleted requires org admin"))
		}
		repo = repo.Unscoped()
	}
	findings, err := repo.ListByProject(ctx, scope.TenantID, projectID, filter)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	return findings, nil
}

func (uc *FindingUseCase) UpdateWorkflow(
	ctx context.Context,
	scope domain.Scope,
	findingID string,
	update domain.WorkflowUpdate,
) (*domain.Finding, error) {
	finding, err := uc.loadForWrite(ctx, scope, uc.findings, findingID)
	if err != nil {
		return nil, err
	}

	session := uc.session(scope)
	session.Track(finding)

	if update.WorkflowStatus != nil {
		status, ok := domain.ParseWorkflowStatus(string(*update.WorkflowStatus))
		if !ok {
			return nil, domain.WrapError(domain.ErrInvalidInput, "update finding workflow", fmt.Errorf("unknown workflow status %q", *update.WorkflowStatus))
		}
		finding.WorkflowStatus = status
	}
	switch {
	case update.ClearAssignee:
		finding.AssignedTo = nil
	case update.AssignedTo != nil:
		assignee := *update.AssignedTo
		finding.AssignedTo = &assignee
	}
	switch {
	case update.ClearDueDate:
		finding.DueDate = nil
	case update.DueDate != nil:
		due := update.DueDate.UTC()
		finding.DueDate = &due
	}

	if err := session.Modify(finding); err != nil {
		return nil, err
	}
	if err := session.Commit(ctx); err != nil {
		return nil, fmt.Errorf("update finding workflow: %w", err)
	}
	return finding, nil
}

// Delete soft-deletes a finding together with its evidence.
func (uc *FindingUseCase) Delete(ctx context.Context, scope domain.Scope, findingID string) error {
	finding, err := uc.loadForWrite(ctx, scope, uc.findings, findingID)
	if err != nil {
		return err
	}
	evidence, err := uc.findings.ListEvidence(ctx, scope.TenantID, finding.ID)
	if err != nil {
		return fmt.Errorf("list finding evidence: %w", err)
	}

	session := uc.session(scope)
	session.Track(finding)
	session.Remove(finding)
	for i := range evidence {
		session.Track(&evidence[i])
		session.Remove(&evidence[i])
	}
	if err := session.Commit(ctx); err != nil {
		return fmt.Errorf("delete finding: %w", err)
	}
	return nil
}

// Restore clears the tombstone of a finding and of the evidence deleted with it.
func (uc *FindingUseCase) Restore(ctx context.Context, scope domain.Scope, findingID string) (*domain.Finding, error) {
	unscoped := uc.findings.Unscoped()
	finding, err := uc.loadForWrite(ctx, scope, unscoped, findingID)
	if err != nil {
		return nil, err
	}
	if !finding.IsDeleted {
		return finding, nil
	}
	evidence, err := unscoped.ListEvidence(ctx, scope.TenantID, finding.ID)
	if err != nil {
		return nil, fmt.Errorf("list finding evidence: %w", err)
	}

	session := uc.session(scope)
	deletedAt := finding.DeletedAt
	session.Track(finding)
	finding.Restore()
	if err := session.Modify(finding); err != nil {
		return nil, err
	}
	for i := range evidence {
		item := &evidence[i]
		if !item.IsDeleted || !sameInstant(item.DeletedAt, deletedAt) {
			continue
		}
		session.Track(item)
		item.Restore()
		if err := session.Modify(item); err != nil {
			return nil, err
		}
	}
	if err := session.Commit(ctx); err != nil {
		return nil, fmt.Errorf("restore finding: %w", err)
	}
	return finding, nil
}

func (uc *FindingUseCase) loadForWrite(
	ctx context.Context,
	scope domain.Scope,
	repo ports.FindingRepository,
	findingID string,
) (*domain.Finding, error) {
	if !scope.HasTenant() {
		return nil, domain.WrapError(domain.ErrUnauthorized, "load finding", errors.New("tenant is required"))
	}
	finding, err := repo.GetByID(ctx, scope.TenantID, findingID)
	if err != nil {
		return nil, fmt.Errorf("load finding: %w", err)
	}
	if _, err := uc.access.requireWrite(ctx, scope, finding.ProjectID); err != nil {
		return nil, err
	}
	return finding, nil
}

func (uc *FindingUseCase) session(scope domain.Scope) *tracking.Session {
	return tracking.NewSession(scope, uc.committer, uc.recorder)
}
