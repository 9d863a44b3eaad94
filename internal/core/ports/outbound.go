package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

// ChangeCommitter applies a rewritten change set in a single transaction.
type ChangeCommitter interface {
	Apply(ctx context.Context, changes []domain.Change) error
}

// LifecycleRecorder receives one notification per committed entity change.
// Implementations must not fail the originating write.
type LifecycleRecorder interface {
	Record(ctx context.Context, scope domain.Scope, entity domain.Auditable, kind domain.ChangeKind, changedFields []string)
}

// DocumentRepository reads documents. Default reads hide soft-deleted rows.
type DocumentRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.Document, error)
	ListByProject(ctx context.Context, tenantID, projectID string) ([]domain.Document, error)
	CountByProject(ctx context.Context, tenantID, projectID string) (int, error)
	Unscoped() DocumentRepository
}

// FindingRepository reads findings and their evidence. Default reads hide soft-deleted rows.
type FindingRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.Finding, error)
	ListByProject(ctx context.Context, tenantID, projectID string, filter domain.FindingFilter) ([]domain.Finding, error)
	CountByProject(ctx context.Context, tenantID, projectID string) (int, error)
	Exists(ctx context.Context, tenantID, id string) (bool, error)
	ListEvidence(ctx context.Context, tenantID, findingID string) ([]domain.Evidence, error)
	Unscoped() FindingRepository
}

// FrameworkRepository reads and imports framework reference data.
type FrameworkRepository interface {
	GetFramework(ctx context.Context, id string) (*domain.Framework, error)
	ListFrameworks(ctx context.Context) ([]domain.Framework, error)
	ListControls(ctx context.Context, frameworkID string) ([]domain.Control, error)
	SaveCatalog(ctx context.Context, catalog domain.FrameworkCatalog) error
}

// ProjectFrameworkRepository reads framework assignments and their cached statistics.
type ProjectFrameworkRepository interface {
	Get(ctx context.Context, tenantID, projectID, frameworkID string) (*domain.ProjectFramework, error)
	ListByProject(ctx context.Context, tenantID, projectID string) ([]domain.ProjectFramework, error)
}

// ProjectRepository reads projects and membership.
type ProjectRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.Project, error)
	GetMemberRole(ctx context.Context, tenantID, projectID, userID string) (domain.ProjectRole, error)
}

// CheckRunRepository reads audit-check history, newest first.
type CheckRunRepository interface {
	ListCompleted(ctx context.Context, tenantID, projectID string, limit int) ([]domain.CheckRun, error)
}

// ActivityLogStore is the append-only activity history.
type ActivityLogStore interface {
	Append(ctx context.Context, entry *domain.ActivityLog) error
	Query(ctx context.Context, filter domain.ActivityFilter) (domain.ActivityPage, error)
}

// UserDirectory resolves actor identities for display.
type UserDirectory interface {
	GetUserByID(ctx context.Context, tenantID, id string) (*domain.User, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// DocumentParser extracts plain text from raw document bytes.
type DocumentParser interface {
	IsSupported(contentType string) bool
	Parse(ctx context.Context, r io.Reader, contentType string) (domain.ParseResult, error)
}

// ComplianceAnalyzer evaluates documents against a set of controls.
type ComplianceAnalyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error)
}

// LifecycleBus forwards lifecycle events to out-of-process consumers.
type LifecycleBus interface {
	PublishLifecycle(ctx context.Context, msg domain.LifecycleMessage) error
	SubscribeLifecycle(ctx context.Context, handler func(context.Context, domain.LifecycleMessage) error) error
}

// CatalogDecoder decodes framework catalogs from an import file.
type CatalogDecoder interface {
	Decode(r io.Reader) ([]domain.FrameworkCatalog, error)
}

// ReportWriter renders a findings report.
type ReportWriter interface {
	ContentType() string
	WriteFindings(w io.Writer, report domain.FindingsReport) error
}

// AuditMetrics observes audit-check outcomes and best-effort failures.
type AuditMetrics interface {
	ObserveCheck(state domain.CheckState, duration time.Duration, findingsCreated int)
	IncActivityWriteFailure(activityType domain.ActivityType)
}
