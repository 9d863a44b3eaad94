package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
)

type memberKey struct {
	tenantID  string
	projectID string
	userID    string
}

// Store is an in-process implementation of every persistence port. It backs
// STORE_DRIVER=memory deployments and end-to-end tests.
type Store struct {
	mu sync.RWMutex

	projects    map[string]domain.Project
	members     map[memberKey]domain.ProjectRole
	users       map[string]domain.User
	documents   map[string]domain.Document
	findings    map[string]domain.Finding
	evidence    map[string]domain.Evidence
	frameworks  map[string]domain.Framework
	controls    map[string][]domain.Control
	assignments map[string]domain.ProjectFramework
	runs        map[string]domain.CheckRun
	activity    []domain.ActivityLog
}

func NewStore() *Store {
	return &Store{
		projects:    make(map[string]domain.Project),
		members:     make(map[memberKey]domain.ProjectRole),
		users:       make(map[string]domain.User),
		documents:   make(map[string]domain.Document),
		findings:    make(map[string]domain.Finding),
		evidence:    make(map[string]domain.Evidence),
		frameworks:  make(map[string]domain.Framework),
		controls:    make(map[string][]domain.Control),
		assignments: make(map[string]domain.ProjectFramework),
		runs:        make(map[string]domain.CheckRun),
	}
}

var (
	_ ports.ChangeCommitter            = (*Store)(nil)
	_ ports.DocumentRepository         = DocumentRepository{}
	_ ports.FindingRepository          = FindingRepository{}
	_ ports.ProjectRepository          = ProjectRepository{}
	_ ports.FrameworkRepository        = FrameworkRepository{}
	_ ports.ProjectFrameworkRepository = ProjectFrameworkRepository{}
	_ ports.CheckRunRepository         = CheckRunRepository{}
	_ ports.ActivityLogStore           = ActivityLogStore{}
	_ ports.UserDirectory              = UserDirectory{}
)

func (s *Store) Documents() DocumentRepository { return DocumentRepository{store: s} }
func (s *Store) Findings() FindingRepository   { return FindingRepository{store: s} }
func (s *Store) Projects() ProjectRepository   { return ProjectRepository{store: s} }
func (s *Store) Frameworks() FrameworkRepository {
	return FrameworkRepository{store: s}
}
func (s *Store) Assignments() ProjectFrameworkRepository {
	return ProjectFrameworkRepository{store: s}
}
func (s *Store) CheckRuns() CheckRunRepository { return CheckRunRepository{store: s} }
func (s *Store) Activity() ActivityLogStore    { return ActivityLogStore{store: s} }
func (s *Store) Users() UserDirectory          { return UserDirectory{store: s} }

// SeedProject stores a project outside of any unit of work.
func (s *Store) SeedProject(project domain.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[project.ID] = project
}

func (s *Store) SeedMember(member domain.ProjectMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey{tenantID: member.TenantID, projectID: member.ProjectID, userID: member.UserID}] = member.Role
}

func (s *Store) SeedUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *Store) SeedAssignment(assignment domain.ProjectFramework) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if assignment.Version == 0 {
		assignment.Version = 1
	}
	s.assignments[assignment.ID] = assignment
}

// Apply validates the whole change set before mutating anything so a failed
// commit leaves the store untouched.
func (s *Store) Apply(_ context.Context, changes []domain.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, change := range changes {
		if err := s.validate(change); err != nil {
			return err
		}
	}
	for _, change := range changes {
		s.apply(change)
	}
	return nil
}

func (s *Store) validate(change domain.Change) error {
	switch entity := change.Entity.(type) {
	case *domain.ProjectFramework:
		if change.Kind == domain.ChangeCreated {
			return nil
		}
		stored, ok := s.assignments[entity.ID]
		if !ok {
			return domain.WrapError(domain.ErrNotFound, "apply project framework", fmt.Errorf("id %s", entity.ID))
		}
		if stored.Version != entity.Version {
			return domain.WrapError(
				domain.ErrConcurrencyConflict,
				"apply project framework",
				fmt.Errorf("id %s: version %d, stored %d", entity.ID, entity.Version, stored.Version),
			)
		}
	case *domain.Project, *domain.Document, *domain.Finding, *domain.Evidence, *domain.CheckRun:
		if change.Kind == domain.ChangeCreated {
			return nil
		}
		if !s.exists(change.Entity) {
			return domain.WrapError(domain.ErrNotFound, "apply change", fmt.Errorf("%s %s", change.Entity.EntityType(), change.Entity.EntityID()))
		}
	default:
		return domain.WrapError(domain.ErrInvalidInput, "apply change", fmt.Errorf("unsupported entity type %T", change.Entity))
	}
	return nil
}

func (s *Store) exists(entity domain.Auditable) bool {
	var ok bool
	switch entity.(type) {
	case *domain.Project:
		_, ok = s.projects[entity.EntityID()]
	case *domain.Document:
		_, ok = s.documents[entity.EntityID()]
	case *domain.Finding:
		_, ok = s.findings[entity.EntityID()]
	case *domain.Evidence:
		_, ok = s.evidence[entity.EntityID()]
	case *domain.CheckRun:
		_, ok = s.runs[entity.EntityID()]
	}
	return ok
}

func (s *Store) apply(change domain.Change) {
	switch entity := change.Entity.(type) {
	case *domain.Project:
		s.projects[entity.ID] = *entity
	case *domain.Document:
		s.documents[entity.ID] = *entity
	case *domain.Finding:
		s.findings[entity.ID] = cloneFinding(*entity)
	case *domain.Evidence:
		s.evidence[entity.ID] = *entity
	case *domain.CheckRun:
		s.runs[entity.ID] = *entity
	case *domain.ProjectFramework:
		entity.Version++
		s.assignments[entity.ID] = *entity
	}
}

func cloneFinding(f domain.Finding) domain.Finding {
	f.RawResult = append([]byte(nil), f.RawResult...)
	return f
}

func visible(tombstone domain.SoftDelete, unscoped bool) bool {
	return unscoped || !tombstone.IsDeleted
}

// DocumentRepository is a view over stored documents.
type DocumentRepository struct {
	store    *Store
	unscoped bool
}

func (r DocumentRepository) Unscoped() ports.DocumentRepository {
	return DocumentRepository{store: r.store, unscoped: true}
}

func (r DocumentRepository) GetByID(_ context.Context, tenantID, id string) (*domain.Document, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	doc, ok := r.store.documents[id]
	if !ok || doc.TenantID != tenantID || !visible(doc.SoftDelete, r.unscoped) {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id %s", id))
	}
	return &doc, nil
}

func (r DocumentRepository) ListByProject(_ context.Context, tenantID, projectID string) ([]domain.Document, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.Document, 0)
	for _, doc := range r.store.documents {
		if doc.TenantID == tenantID && doc.ProjectID == projectID && visible(doc.SoftDelete, r.unscoped) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r DocumentRepository) CountByProject(ctx context.Context, tenantID, projectID string) (int, error) {
	docs, err := r.ListByProject(ctx, tenantID, projectID)
	return len(docs), err
}

// FindingRepository is a view over stored findings and evidence.
type FindingRepository struct {
	store    *Store
	unscoped bool
}

func (r FindingRepository) Unscoped() ports.FindingRepository {
	return FindingRepository{store: r.store, unscoped: true}
}

func (r FindingRepository) GetByID(_ context.Context, tenantID, id string) (*domain.Finding, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	finding, ok := r.store.findings[id]
	if !ok || finding.TenantID != tenantID || !visible(finding.SoftDelete, r.unscoped) {
		return nil, domain.WrapError(domain.ErrNotFound, "get finding", fmt.Errorf("id %s", id))
	}
	finding = cloneFinding(finding)
	return &finding, nil
}

func (r FindingRepository) ListByProject(
	_ context.Context,
	tenantID, projectID string,
	filter domain.FindingFilter,
) ([]domain.Finding, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.Finding, 0)
	for _, finding := range r.store.findings {
		if finding.TenantID != tenantID || finding.ProjectID != projectID || !visible(finding.SoftDelete, r.unscoped) {
			continue
		}
		if filter.FrameworkID != "" && finding.FrameworkID != filter.FrameworkID {
			continue
		}
		if filter.WorkflowStatus != "" && finding.WorkflowStatus != filter.WorkflowStatus {
			continue
		}
		if filter.RiskLevel != "" && finding.RiskLevel != filter.RiskLevel {
			continue
		}
		out = append(out, cloneFinding(finding))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (r FindingRepository) CountByProject(ctx context.Context, tenantID, projectID string) (int, error) {
	findings, err := r.ListByProject(ctx, tenantID, projectID, domain.FindingFilter{})
	return len(findings), err
}

func (r FindingRepository) Exists(ctx context.Context, tenantID, id string) (bool, error) {
	if _, err := r.GetByID(ctx, tenantID, id); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r FindingRepository) ListEvidence(_ context.Context, tenantID, findingID string) ([]domain.Evidence, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.Evidence, 0)
	for _, evidence := range r.store.evidence {
		if evidence.TenantID == tenantID && evidence.FindingID == findingID && visible(evidence.SoftDelete, r.unscoped) {
			out = append(out, evidence)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })
	return out, nil
}

type ProjectRepository struct {
	store *Store
}

func (r ProjectRepository) GetByID(_ context.Context, tenantID, id string) (*domain.Project, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	project, ok := r.store.projects[id]
	if !ok || project.TenantID != tenantID || project.IsDeleted {
		return nil, domain.WrapError(domain.ErrNotFound, "get project", fmt.Errorf("id %s", id))
	}
	return &project, nil
}

func (r ProjectRepository) GetMemberRole(_ context.Context, tenantID, projectID, userID string) (domain.ProjectRole, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	role, ok := r.store.members[memberKey{tenantID: tenantID, projectID: projectID, userID: userID}]
	if !ok {
		return "", domain.WrapError(domain.ErrNotFound, "get project member", fmt.Errorf("user %s", userID))
	}
	return role, nil
}

type FrameworkRepository struct {
	store *Store
}

func (r FrameworkRepository) GetFramework(_ context.Context, id string) (*domain.Framework, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	framework, ok := r.store.frameworks[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get framework", fmt.Errorf("id %s", id))
	}
	return &framework, nil
}

func (r FrameworkRepository) ListFrameworks(context.Context) ([]domain.Framework, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.Framework, 0, len(r.store.frameworks))
	for _, framework := range r.store.frameworks {
		out = append(out, framework)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r FrameworkRepository) ListControls(_ context.Context, frameworkID string) ([]domain.Control, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]domain.Control(nil), r.store.controls[frameworkID]...), nil
}

func (r FrameworkRepository) SaveCatalog(_ context.Context, catalog domain.FrameworkCatalog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.frameworks[catalog.Framework.ID] = catalog.Framework
	controls := append([]domain.Control(nil), catalog.Controls...)
	sort.SliceStable(controls, func(i, j int) bool { return controls[i].Code < controls[j].Code })
	r.store.controls[catalog.Framework.ID] = controls
	return nil
}

type ProjectFrameworkRepository struct {
	store *Store
}

func (r ProjectFrameworkRepository) Get(_ context.Context, tenantID, projectID, frameworkID string) (*domain.ProjectFramework, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, assignment := range r.store.assignments {
		if assignment.TenantID == tenantID && assignment.ProjectID == projectID &&
			assignment.FrameworkID == frameworkID && !assignment.IsDeleted {
			return &assignment, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "get project framework", fmt.Errorf("project %s framework %s", projectID, frameworkID))
}

func (r ProjectFrameworkRepository) ListByProject(_ context.Context, tenantID, projectID string) ([]domain.ProjectFramework, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.ProjectFramework, 0)
	for _, assignment := range r.store.assignments {
		if assignment.TenantID == tenantID && assignment.ProjectID == projectID && !assignment.IsDeleted {
			out = append(out, assignment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FrameworkID < out[j].FrameworkID })
	return out, nil
}

type CheckRunRepository struct {
	store *Store
}

func (r CheckRunRepository) ListCompleted(_ context.Context, tenantID, projectID string, limit int) ([]domain.CheckRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.CheckRun, 0)
	for _, run := range r.store.runs {
		if run.TenantID == tenantID && run.ProjectID == projectID &&
			run.State == domain.CheckCompleted && run.CompletedAt != nil && !run.IsDeleted {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(*out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ActivityLogStore is append-only; entries are never modified after Append.
type ActivityLogStore struct {
	store *Store
}

func (r ActivityLogStore) Append(_ context.Context, entry *domain.ActivityLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copied := *entry
	copied.Metadata = append([]byte(nil), entry.Metadata...)
	r.store.activity = append(r.store.activity, copied)
	return nil
}

func (r ActivityLogStore) Query(_ context.Context, filter domain.ActivityFilter) (domain.ActivityPage, error) {
	filter = filter.Normalize()
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched := make([]domain.ActivityLog, 0)
	for i := len(r.store.activity) - 1; i >= 0; i-- {
		entry := r.store.activity[i]
		if matchesActivity(entry, filter) {
			matched = append(matched, entry)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	page := domain.ActivityPage{Total: len(matched), Items: []domain.ActivityLog{}}
	if filter.Offset >= len(matched) {
		return page, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page.Items = append(page.Items, matched[filter.Offset:end]...)
	return page, nil
}

func matchesActivity(entry domain.ActivityLog, filter domain.ActivityFilter) bool {
	if entry.TenantID != filter.TenantID {
		return false
	}
	if filter.ProjectID != "" && (entry.ProjectID == nil || *entry.ProjectID != filter.ProjectID) {
		return false
	}
	if filter.ActivityType != "" && entry.ActivityType != filter.ActivityType {
		return false
	}
	if filter.ActorID != "" && (entry.ActorID == nil || *entry.ActorID != filter.ActorID) {
		return false
	}
	if filter.EntityType != "" && entry.EntityType != filter.EntityType {
		return false
	}
	if filter.EntityID != "" && entry.EntityID != filter.EntityID {
		return false
	}
	if filter.From != nil && entry.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && entry.CreatedAt.After(*filter.To) {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		haystack := strings.ToLower(entry.Description + " " + entry.EntityName + " " + entry.ActorName)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

type UserDirectory struct {
	store *Store
}

func (r UserDirectory) GetUserByID(_ context.Context, _ string, id string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	user, ok := r.store.users[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get user", fmt.Errorf("id %s", id))
	}
	return &user, nil
}
