package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

func TestDeletedDocumentHiddenFromDefaultReads(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	doc := &domain.Document{ID: "d-1", TenantID: "t-1", ProjectID: "p-1", FileName: "policy.pdf"}
	if err := store.Apply(ctx, []domain.Change{{Kind: domain.ChangeCreated, Entity: doc}}); err != nil {
		t.Fatalf("Apply(create) error = %v", err)
	}

	doc.MarkDeleted(nil, time.Now())
	if err := store.Apply(ctx, []domain.Change{{Kind: domain.ChangeDeleted, Entity: doc}}); err != nil {
		t.Fatalf("Apply(delete) error = %v", err)
	}

	repo := store.Documents()
	if _, err := repo.GetByID(ctx, "t-1", "d-1"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if count, _ := repo.CountByProject(ctx, "t-1", "p-1"); count != 0 {
		t.Fatalf("expected zero visible documents, got %d", count)
	}
	got, err := repo.Unscoped().GetByID(ctx, "t-1", "d-1")
	if err != nil {
		t.Fatalf("Unscoped().GetByID() error = %v", err)
	}
	if !got.IsDeleted || got.DeletedAt == nil || got.DeletedAt.Location() != time.UTC {
		t.Fatalf("expected UTC tombstone, got %+v", got.SoftDelete)
	}
}

func TestFindingExistsRespectsVisibility(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	finding := &domain.Finding{ID: "f-1", TenantID: "t-1", ProjectID: "p-1"}
	finding.MarkDeleted(nil, time.Now())
	if err := store.Apply(ctx, []domain.Change{{Kind: domain.ChangeCreated, Entity: finding}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	exists, err := store.Findings().Exists(ctx, "t-1", "f-1")
	if err != nil || exists {
		t.Fatalf("expected hidden finding, exists=%v err=%v", exists, err)
	}
	exists, err = store.Findings().Unscoped().Exists(ctx, "t-1", "f-1")
	if err != nil || !exists {
		t.Fatalf("expected unscoped finding, exists=%v err=%v", exists, err)
	}
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	doc := &domain.Document{ID: "d-1", TenantID: "t-1", ProjectID: "p-1"}
	if err := store.Apply(ctx, []domain.Change{{Kind: domain.ChangeCreated, Entity: doc}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if _, err := store.Documents().GetByID(ctx, "t-2", "d-1"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
}

func TestApplyRejectsStaleProjectFrameworkVersion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.SeedAssignment(domain.ProjectFramework{ID: "pf-1", TenantID: "t-1", ProjectID: "p-1", FrameworkID: "fw-1", IsActive: true})

	first, _ := store.Assignments().Get(ctx, "t-1", "p-1", "fw-1")
	second, _ := store.Assignments().Get(ctx, "t-1", "p-1", "fw-1")

	first.CompliantCount = 3
	if err := store.Apply(ctx, []domain.Change{{Kind: domain.ChangeUpdated, Entity: first}}); err != nil {
		t.Fatalf("Apply(first) error = %v", err)
	}
	if first.Version != 2 {
		t.Fatalf("expected version bump to 2, got %d", first.Version)
	}

	second.CompliantCount = 7
	newFinding := &domain.Finding{ID: "f-1", TenantID: "t-1", ProjectID: "p-1"}
	err := store.Apply(ctx, []domain.Change{
		{Kind: domain.ChangeCreated, Entity: newFinding},
		{Kind: domain.ChangeUpdated, Entity: second},
	})
	if !domain.IsKind(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
	if exists, _ := store.Findings().Exists(ctx, "t-1", "f-1"); exists {
		t.Fatalf("expected atomic rejection, finding was stored")
	}
	stored, _ := store.Assignments().Get(ctx, "t-1", "p-1", "fw-1")
	if stored.CompliantCount != 3 {
		t.Fatalf("expected first writer to win, got %d", stored.CompliantCount)
	}
}

func TestActivityQueryFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	log := store.Activity()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	project := "p-1"
	for i := 0; i < 5; i++ {
		entry := &domain.ActivityLog{
			ID:           string(rune('a' + i)),
			TenantID:     "t-1",
			ProjectID:    &project,
			ActivityType: domain.ActivityCreated,
			EntityType:   domain.EntityTypeDocument,
			Description:  "Created document 'policy'",
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}
		if err := log.Append(ctx, entry); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	_ = log.Append(ctx, &domain.ActivityLog{ID: "other", TenantID: "t-2", CreatedAt: base})

	page, err := log.Query(ctx, domain.ActivityFilter{TenantID: "t-1", Search: "POLICY", Limit: 2})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if page.Total != 5 || len(page.Items) != 2 {
		t.Fatalf("expected 2 of 5, got %d of %d", len(page.Items), page.Total)
	}
	if page.Items[0].ID != "e" {
		t.Fatalf("expected newest first, got %s", page.Items[0].ID)
	}
}
