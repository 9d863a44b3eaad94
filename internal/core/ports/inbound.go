package ports

import (
	"context"
	"io"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

// DocumentService is the inbound contract for document upload and lifecycle.
type DocumentService interface {
	Upload(ctx context.Context, scope domain.Scope, projectID, filename, contentType string, body io.Reader) (*domain.Document, error)
	Delete(ctx context.Context, scope domain.Scope, documentID string) error
	Restore(ctx context.Context, scope domain.Scope, documentID string) (*domain.Document, error)
}

// DocumentExtractionWarmer pre-populates cached document text in the background.
type DocumentExtractionWarmer interface {
	WarmExtraction(ctx context.Context, scope domain.Scope, documentID string) error
}

// AuditCheckRunner is the inbound contract for running a compliance check.
type AuditCheckRunner interface {
	RunCheck(ctx context.Context, scope domain.Scope, projectID, frameworkID string, opts domain.AnalysisOptions) (*domain.CheckResult, error)
}

// DashboardReader builds the compliance dashboard read model.
type DashboardReader interface {
	GetDashboard(ctx context.Context, scope domain.Scope, projectID string) (*domain.Dashboard, error)
}

// FindingService manages finding workflow and visibility.
type FindingService interface {
	List(ctx context.Context, scope domain.Scope, projectID string, filter domain.FindingFilter, includeDeleted bool) ([]domain.Finding, error)
	UpdateWorkflow(ctx context.Context, scope domain.Scope, findingID string, update domain.WorkflowUpdate) (*domain.Finding, error)
	Delete(ctx context.Context, scope domain.Scope, findingID string) error
	Restore(ctx context.Context, scope domain.Scope, findingID string) (*domain.Finding, error)
}

// ActivityReader queries the tenant activity history.
type ActivityReader interface {
	Query(ctx context.Context, scope domain.Scope, filter domain.ActivityFilter) (domain.ActivityPage, error)
}

// CatalogImporter loads framework reference data.
type CatalogImporter interface {
	Import(ctx context.Context, scope domain.Scope, r io.Reader) ([]domain.Framework, error)
}

// ReportExporter renders project reports.
type ReportExporter interface {
	ContentType() string
	ExportFindings(ctx context.Context, scope domain.Scope, projectID string, w io.Writer) error
}
