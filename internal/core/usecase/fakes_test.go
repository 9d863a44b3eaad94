package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/tracking"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/repository/memory"
)

const (
	testTenant    = "t-1"
	testProject   = "p-1"
	testFramework = "fw-1"
	testOwner     = "u-owner"
	testViewer    = "u-viewer"
)

type storageFake struct {
	mu      sync.Mutex
	files   map[string]string
	deleted []string
	saveErr error
	openErr error
}

func newStorageFake() *storageFake {
	return &storageFake{files: make(map[string]string)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.files[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	f.deleted = append(f.deleted, key)
	return nil
}

// parserFake supports text/plain and fails on bodies containing "corrupt".
type parserFake struct {
	calls int
}

func (f *parserFake) IsSupported(contentType string) bool {
	return contentType == "text/plain"
}

func (f *parserFake) Parse(_ context.Context, r io.Reader, _ string) (domain.ParseResult, error) {
	f.calls++
	raw, err := io.ReadAll(r)
	if err != nil {
		return domain.ParseResult{}, err
	}
	if strings.Contains(string(raw), "corrupt") {
		return domain.ParseResult{}, errors.New("corrupt document")
	}
	return domain.ParseResult{Success: true, Text: string(raw), PageCount: 1}, nil
}

type analyzerFake struct {
	calls    int
	requests []domain.AnalysisRequest
	response *domain.AnalysisResponse
	err      error
}

func (f *analyzerFake) Analyze(_ context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.response == nil {
		return nil, nil
	}
	copied := *f.response
	copied.Results = append([]domain.ControlResult(nil), f.response.Results...)
	return &copied, nil
}

type metricsFake struct {
	checks          map[domain.CheckState]int
	activityFailure int
}

func (f *metricsFake) ObserveCheck(state domain.CheckState, _ time.Duration, _ int) {
	if f.checks == nil {
		f.checks = make(map[domain.CheckState]int)
	}
	f.checks[state]++
}

func (f *metricsFake) IncActivityWriteFailure(domain.ActivityType) {
	f.activityFailure++
}

// tickingClock advances by one minute on every call.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Minute)
		return current
	}
}

// fixture wires the use cases over the in-memory store the same way bootstrap does.
type fixture struct {
	store      *memory.Store
	storage    *storageFake
	parser     *parserFake
	analyzer   *analyzerFake
	metrics    *metricsFake
	dispatcher *tracking.Dispatcher
	activity   *ActivityWriter
	aggregator *ContentAggregator
	controls   []domain.Control
	owner      domain.Scope
}

func newFixture(t *testing.T, controlCodes ...string) *fixture {
	t.Helper()
	store := memory.NewStore()
	fx := &fixture{
		store:      store,
		storage:    newStorageFake(),
		parser:     &parserFake{},
		analyzer:   &analyzerFake{},
		metrics:    &metricsFake{},
		dispatcher: tracking.NewDispatcher(),
		owner:      domain.Scope{TenantID: testTenant, ActorID: testOwner, OrgRole: domain.OrgRoleMember},
	}
	fx.activity = NewActivityWriter(store.Activity(), store.Users(), fx.metrics)
	fx.activity.Register(fx.dispatcher)
	fx.aggregator = NewContentAggregator(fx.storage, fx.parser)

	store.SeedProject(domain.Project{ID: testProject, TenantID: testTenant, Name: "SOC readiness", Status: "active"})
	store.SeedUser(domain.User{ID: testOwner, FirstName: "Dana", LastName: "Ortiz", Email: "dana@example.com"})
	store.SeedMember(domain.ProjectMember{TenantID: testTenant, ProjectID: testProject, UserID: testOwner, Role: domain.ProjectRoleOwner})
	store.SeedMember(domain.ProjectMember{TenantID: testTenant, ProjectID: testProject, UserID: testViewer, Role: domain.ProjectRoleReadOnly})

	for i, code := range controlCodes {
		fx.controls = append(fx.controls, domain.Control{
			ID:               controlID(i),
			FrameworkID:      testFramework,
			Code:             code,
			Title:            "Control " + code,
			Description:      "Requirement " + code,
			IsMandatory:      true,
			DefaultRiskLevel: domain.RiskMedium,
		})
	}
	err := store.Frameworks().SaveCatalog(context.Background(), domain.FrameworkCatalog{
		Framework: domain.Framework{ID: testFramework, Code: "iso27001", Name: "ISO/IEC 27001", IsActive: true},
		Controls:  fx.controls,
	})
	if err != nil {
		t.Fatalf("SaveCatalog() error = %v", err)
	}
	store.SeedAssignment(domain.ProjectFramework{
		ID:          "pf-1",
		TenantID:    testTenant,
		ProjectID:   testProject,
		FrameworkID: testFramework,
		IsActive:    true,
	})
	return fx
}

func controlID(i int) string {
	return []string{
		"a1b2c3d4-0000-4000-8000-000000000001",
		"b2c3d4e5-0000-4000-8000-000000000002",
		"c3d4e5f6-0000-4000-8000-000000000003",
		"d4e5f6a7-0000-4000-8000-000000000004",
		"e5f6a7b8-0000-4000-8000-000000000005",
	}[i]
}

func (fx *fixture) addDocument(t *testing.T, id, projectID, body string) *domain.Document {
	t.Helper()
	key := id + "_doc.txt"
	fx.storage.files[key] = body
	doc := &domain.Document{
		ID:          id,
		TenantID:    testTenant,
		ProjectID:   projectID,
		FileName:    id + ".txt",
		StoragePath: key,
		ContentType: "text/plain",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := fx.store.Apply(context.Background(), []domain.Change{{Kind: domain.ChangeCreated, Entity: doc}}); err != nil {
		t.Fatalf("Apply(document) error = %v", err)
	}
	return doc
}

func (fx *fixture) auditCheck() *AuditCheckUseCase {
	return NewAuditCheckUseCase(AuditCheckDependencies{
		Projects:    fx.store.Projects(),
		Frameworks:  fx.store.Frameworks(),
		Assignments: fx.store.Assignments(),
		Documents:   fx.store.Documents(),
		Aggregator:  fx.aggregator,
		Analyzer:    fx.analyzer,
		Committer:   fx.store,
		Recorder:    fx.dispatcher,
		Activity:    fx.activity,
		Metrics:     fx.metrics,
	}, domain.AnalysisOptions{Model: "llama3.1:8b", Language: "en", IncludeEvidence: true}, "2026.1")
}

func (fx *fixture) dashboard() *DashboardUseCase {
	return NewDashboardUseCase(
		fx.store.Projects(),
		fx.store.Assignments(),
		fx.store.Frameworks(),
		fx.store.Findings(),
		fx.store.Documents(),
		fx.store.CheckRuns(),
	)
}

func (fx *fixture) findingUseCase() *FindingUseCase {
	return NewFindingUseCase(fx.store.Projects(), fx.store.Findings(), fx.store, fx.dispatcher)
}

func (fx *fixture) documentUseCase() *DocumentUseCase {
	return NewDocumentUseCase(fx.store.Projects(), fx.store.Documents(), fx.storage, fx.aggregator, fx.store, fx.dispatcher)
}

func (fx *fixture) activityEntries(t *testing.T) []domain.ActivityLog {
	t.Helper()
	page, err := fx.store.Activity().Query(context.Background(), domain.ActivityFilter{TenantID: testTenant, Limit: domain.MaxActivityPageSize})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	return page.Items
}

func activityOfType(entries []domain.ActivityLog, activityType domain.ActivityType) []domain.ActivityLog {
	var out []domain.ActivityLog
	for _, entry := range entries {
		if entry.ActivityType == activityType {
			out = append(out, entry)
		}
	}
	return out
}
