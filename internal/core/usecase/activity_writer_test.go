package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/tracking"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/repository/memory"
)

type failingActivityStore struct{}

func (failingActivityStore) Append(context.Context, *domain.ActivityLog) error {
	return errors.New("activity table unavailable")
}

func (failingActivityStore) Query(context.Context, domain.ActivityFilter) (domain.ActivityPage, error) {
	return domain.ActivityPage{}, nil
}

func newWriterFixture() (*memory.Store, *tracking.Dispatcher) {
	store := memory.NewStore()
	store.SeedUser(domain.User{ID: "u-1", FirstName: "Ana", LastName: "Reyes", Email: "ana@example.com"})
	dispatcher := tracking.NewDispatcher()
	NewActivityWriter(store.Activity(), store.Users(), nil).Register(dispatcher)
	return store, dispatcher
}

func queryAll(t *testing.T, store *memory.Store) []domain.ActivityLog {
	t.Helper()
	page, err := store.Activity().Query(context.Background(), domain.ActivityFilter{TenantID: testTenant})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	return page.Items
}

func TestActivityUpdateWithOnlyAuditFieldsWritesNothing(t *testing.T) {
	store, dispatcher := newWriterFixture()
	scope := domain.Scope{TenantID: testTenant, ActorID: "u-1"}

	dispatcher.Record(context.Background(), scope, &domain.Finding{ID: "f-1", Title: "Gap"}, domain.ChangeUpdated,
		[]string{"UpdatedAt", "LastAnalyzedAt"})
	dispatcher.Record(context.Background(), scope, &domain.Document{ID: "d-1"}, domain.ChangeUpdated,
		[]string{"ExtractedText", "PageCount", "UpdatedAt"})

	if entries := queryAll(t, store); len(entries) != 0 {
		t.Fatalf("expected no activity, got %+v", entries)
	}
}

func TestActivityUpdateRecordsSignificantSubset(t *testing.T) {
	store, dispatcher := newWriterFixture()
	scope := domain.Scope{TenantID: testTenant, ActorID: "u-1"}

	dispatcher.Record(context.Background(), scope, &domain.Finding{ID: "f-1", ProjectID: testProject, Title: "Gap"}, domain.ChangeUpdated,
		[]string{"WorkflowStatus", "UpdatedAt", "AssignedTo"})

	entries := queryAll(t, store)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Description != "Updated finding 'Gap': WorkflowStatus, AssignedTo" {
		t.Fatalf("unexpected description %q", entry.Description)
	}
	var metadata struct {
		ModifiedProperties []string `json:"modifiedProperties"`
	}
	if err := json.Unmarshal(entry.Metadata, &metadata); err != nil {
		t.Fatalf("metadata unmarshal error = %v", err)
	}
	if !reflect.DeepEqual(metadata.ModifiedProperties, []string{"WorkflowStatus", "AssignedTo"}) {
		t.Fatalf("unexpected modified properties %v", metadata.ModifiedProperties)
	}
	if entry.ActorName != "Ana Reyes" || entry.ActorEmail != "ana@example.com" {
		t.Fatalf("unexpected actor %q %q", entry.ActorName, entry.ActorEmail)
	}
	if entry.ProjectID == nil || *entry.ProjectID != testProject {
		t.Fatalf("expected project id, got %v", entry.ProjectID)
	}
}

func TestActivityUpdateWithManyFieldsUsesGenericDescription(t *testing.T) {
	store, dispatcher := newWriterFixture()
	dispatcher.Record(context.Background(), domain.Scope{TenantID: testTenant}, &domain.Finding{ID: "f-1", Title: "Gap"}, domain.ChangeUpdated,
		[]string{"Title", "Description", "RiskLevel", "DueDate"})

	entries := queryAll(t, store)
	if len(entries) != 1 || entries[0].Description != "Updated finding 'Gap'" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].ActorName != systemActorName {
		t.Fatalf("expected system actor, got %q", entries[0].ActorName)
	}
}

func TestActivityCreatedFollowsAllowList(t *testing.T) {
	store, dispatcher := newWriterFixture()
	scope := domain.Scope{TenantID: testTenant, ActorID: "u-unknown"}

	dispatcher.Record(context.Background(), scope, &domain.Project{ID: "p-9", Name: "Vendor risk"}, domain.ChangeCreated, nil)
	dispatcher.Record(context.Background(), scope, &domain.Evidence{ID: "e-1"}, domain.ChangeCreated, nil)
	dispatcher.Record(context.Background(), scope, &domain.CheckRun{ID: "r-1"}, domain.ChangeCreated, nil)

	entries := queryAll(t, store)
	if len(entries) != 1 {
		t.Fatalf("expected only the project entry, got %+v", entries)
	}
	if entries[0].Description != "Created project 'Vendor risk'" {
		t.Fatalf("unexpected description %q", entries[0].Description)
	}
	if entries[0].ActorName != unknownActorName {
		t.Fatalf("expected unknown user fallback, got %q", entries[0].ActorName)
	}
	var metadata map[string]any
	if err := json.Unmarshal(entries[0].Metadata, &metadata); err != nil {
		t.Fatalf("metadata unmarshal error = %v", err)
	}
	if metadata["createdBy"] != "u-unknown" || metadata["createdAt"] == nil {
		t.Fatalf("unexpected metadata %v", metadata)
	}
}

func TestActivityDeletedRecordsTombstone(t *testing.T) {
	store, dispatcher := newWriterFixture()
	actor := "u-1"
	doc := &domain.Document{ID: "d-1", FileName: "policy.pdf"}
	doc.MarkDeleted(&actor, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	dispatcher.Record(context.Background(), domain.Scope{TenantID: testTenant, ActorID: actor}, doc, domain.ChangeDeleted, nil)

	entries := queryAll(t, store)
	if len(entries) != 1 || entries[0].Description != "Deleted document 'policy.pdf'" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	var metadata map[string]any
	if err := json.Unmarshal(entries[0].Metadata, &metadata); err != nil {
		t.Fatalf("metadata unmarshal error = %v", err)
	}
	if metadata["isDeleted"] != true || metadata["deletedBy"] != "u-1" || metadata["deletedAt"] != "2026-03-01T10:00:00Z" {
		t.Fatalf("unexpected metadata %v", metadata)
	}
}

func TestActivityWithoutTenantIsSkipped(t *testing.T) {
	store, dispatcher := newWriterFixture()
	dispatcher.Record(context.Background(), domain.Scope{ActorID: "u-1"}, &domain.Project{ID: "p-1", Name: "x"}, domain.ChangeCreated, nil)

	page, _ := store.Activity().Query(context.Background(), domain.ActivityFilter{TenantID: ""})
	if page.Total != 0 {
		t.Fatalf("expected no tenant-less entries, got %d", page.Total)
	}
}

func TestActivityStoreFailureIsSwallowed(t *testing.T) {
	metrics := &metricsFake{}
	writer := NewActivityWriter(failingActivityStore{}, nil, metrics)
	event := domain.LifecycleEvent{
		Kind:       domain.ChangeCreated,
		EntityType: domain.EntityTypeProject,
		EntityID:   "p-1",
		EntityName: "x",
		Entity:     &domain.Project{ID: "p-1"},
		Scope:      domain.Scope{TenantID: testTenant},
	}
	if err := writer.OnCreated(context.Background(), event); err != nil {
		t.Fatalf("OnCreated() error = %v", err)
	}
	if metrics.activityFailure != 1 {
		t.Fatalf("expected failure metric, got %d", metrics.activityFailure)
	}
}

func TestEntityLabel(t *testing.T) {
	cases := map[string]string{
		domain.EntityTypeOrganizationMember: "organization member",
		domain.EntityTypeEvidence:           "finding evidence",
		domain.EntityTypeDocument:           "document",
	}
	for in, want := range cases {
		if got := entityLabel(in); got != want {
			t.Fatalf("entityLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
