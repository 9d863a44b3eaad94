package tracking

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

type committerFake struct {
	applied [][]domain.Change
	err     error
}

func (f *committerFake) Apply(_ context.Context, changes []domain.Change) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, changes)
	return nil
}

type recordedEvent struct {
	scope   domain.Scope
	entity  domain.Auditable
	kind    domain.ChangeKind
	changed []string
}

type recorderFake struct {
	events []recordedEvent
}

func (f *recorderFake) Record(_ context.Context, scope domain.Scope, entity domain.Auditable, kind domain.ChangeKind, changed []string) {
	f.events = append(f.events, recordedEvent{scope: scope, entity: entity, kind: kind, changed: changed})
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestSession(scope domain.Scope) (*Session, *committerFake, *recorderFake) {
	committer := &committerFake{}
	recorder := &recorderFake{}
	session := NewSession(scope, committer, recorder).WithClock(func() time.Time { return fixedNow })
	return session, committer, recorder
}

func loadedFinding() *domain.Finding {
	return &domain.Finding{
		ID:             "f-1",
		TenantID:       "t-1",
		ProjectID:      "p-1",
		Title:          "Access reviews missing",
		Status:         domain.StatusNonCompliant,
		RiskLevel:      domain.RiskHigh,
		WorkflowStatus: domain.WorkflowOpen,
		CreatedAt:      fixedNow.Add(-48 * time.Hour),
		UpdatedAt:      fixedNow.Add(-48 * time.Hour),
	}
}

func TestSessionRemoveRewritesToTombstone(t *testing.T) {
	session, committer, recorder := newTestSession(domain.Scope{TenantID: "t-1", ActorID: "u-7"})
	doc := &domain.Document{ID: "d-1", TenantID: "t-1", ProjectID: "p-1", FileName: "policy.pdf"}
	session.Track(doc)
	session.Remove(doc)

	if err := session.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if len(committer.applied) != 1 || len(committer.applied[0]) != 1 {
		t.Fatalf("expected one applied change, got %+v", committer.applied)
	}
	change := committer.applied[0][0]
	if change.Kind != domain.ChangeDeleted {
		t.Fatalf("expected deleted change, got %s", change.Kind)
	}
	if !doc.IsDeleted || doc.DeletedAt == nil || !doc.DeletedAt.Equal(fixedNow) {
		t.Fatalf("expected tombstone at %v, got %+v", fixedNow, doc.SoftDelete)
	}
	if doc.DeletedBy == nil || *doc.DeletedBy != "u-7" {
		t.Fatalf("expected deleted_by u-7, got %v", doc.DeletedBy)
	}
	if len(recorder.events) != 1 || recorder.events[0].kind != domain.ChangeDeleted {
		t.Fatalf("expected one deleted event, got %+v", recorder.events)
	}
}

func TestSessionRemoveWithoutActorLeavesDeletedByNil(t *testing.T) {
	session, _, recorder := newTestSession(domain.SystemScope("t-1"))
	doc := &domain.Document{ID: "d-1", TenantID: "t-1", FileName: "policy.pdf"}
	session.Remove(doc)

	if err := session.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if !doc.IsDeleted || doc.DeletedBy != nil {
		t.Fatalf("expected tombstone without actor, got %+v", doc.SoftDelete)
	}
	if len(recorder.events) != 1 {
		t.Fatalf("expected one event, got %d", len(recorder.events))
	}
}

func TestSessionModifyReportsChangedFields(t *testing.T) {
	session, committer, recorder := newTestSession(domain.Scope{TenantID: "t-1", ActorID: "u-1"})
	finding := loadedFinding()
	session.Track(finding)

	finding.WorkflowStatus = domain.WorkflowInProgress
	assignee := "u-2"
	finding.AssignedTo = &assignee
	if err := session.Modify(finding); err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if err := session.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	want := []string{"WorkflowStatus", "AssignedTo", "UpdatedAt"}
	got := committer.applied[0][0].ChangedFields
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("changed fields = %v, want %v", got, want)
	}
	if !finding.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("expected updated_at to be touched, got %v", finding.UpdatedAt)
	}
	if len(recorder.events) != 1 || !reflect.DeepEqual(recorder.events[0].changed, want) {
		t.Fatalf("unexpected events: %+v", recorder.events)
	}
}

func TestSessionModifyWithoutChangesIsSkipped(t *testing.T) {
	session, committer, recorder := newTestSession(domain.Scope{TenantID: "t-1"})
	finding := loadedFinding()
	session.Track(finding)
	if err := session.Modify(finding); err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if err := session.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(committer.applied) != 0 {
		t.Fatalf("expected no write, got %+v", committer.applied)
	}
	if len(recorder.events) != 0 {
		t.Fatalf("expected no events, got %+v", recorder.events)
	}
}

func TestSessionModifyUntrackedFails(t *testing.T) {
	session, _, _ := newTestSession(domain.Scope{TenantID: "t-1"})
	err := session.Modify(loadedFinding())
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSessionFailedCommitRecordsNothingAndRevertsTombstone(t *testing.T) {
	session, committer, recorder := newTestSession(domain.Scope{TenantID: "t-1", ActorID: "u-1"})
	committer.err = errors.New("tx aborted")
	doc := &domain.Document{ID: "d-1", FileName: "policy.pdf"}
	session.Track(doc)
	session.Remove(doc)
	session.Add(&domain.Finding{ID: "f-9", Title: "New"})

	err := session.Commit(context.Background())
	if err == nil {
		t.Fatalf("expected commit error")
	}
	if doc.IsDeleted || doc.DeletedAt != nil {
		t.Fatalf("expected tombstone revert, got %+v", doc.SoftDelete)
	}
	if len(recorder.events) != 0 {
		t.Fatalf("expected no events after failed commit, got %d", len(recorder.events))
	}
}

func TestSessionCreatedEventsFollowCommitOrder(t *testing.T) {
	session, committer, recorder := newTestSession(domain.Scope{TenantID: "t-1", ActorID: "u-1"})
	finding := &domain.Finding{ID: "f-1", Title: "Gap"}
	evidence := &domain.Evidence{ID: "e-1", FindingID: "f-1", Excerpt: "quote"}
	session.Add(finding)
	session.Add(evidence)

	if err := session.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(committer.applied) != 1 || len(committer.applied[0]) != 2 {
		t.Fatalf("expected one transaction with two changes, got %+v", committer.applied)
	}
	if finding.CreatedAt.IsZero() || !finding.CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected created_at to be stamped, got %v", finding.CreatedAt)
	}
	if len(recorder.events) != 2 || recorder.events[0].entity != finding || recorder.events[1].entity != evidence {
		t.Fatalf("unexpected events: %+v", recorder.events)
	}
	for _, event := range recorder.events {
		if event.kind != domain.ChangeCreated {
			t.Fatalf("expected created event, got %s", event.kind)
		}
	}
}

func TestSessionAddThenRemoveDropsEntity(t *testing.T) {
	session, committer, _ := newTestSession(domain.Scope{TenantID: "t-1"})
	finding := &domain.Finding{ID: "f-1"}
	session.Add(finding)
	session.Remove(finding)
	if err := session.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(committer.applied) != 0 {
		t.Fatalf("expected nothing applied, got %+v", committer.applied)
	}
}

func TestSessionRemoveAlreadyDeletedIsNoop(t *testing.T) {
	session, committer, recorder := newTestSession(domain.Scope{TenantID: "t-1"})
	doc := &domain.Document{ID: "d-1"}
	doc.MarkDeleted(nil, fixedNow.Add(-time.Hour))
	session.Remove(doc)
	if err := session.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(committer.applied) != 0 || len(recorder.events) != 0 {
		t.Fatalf("expected no-op, got applied=%d events=%d", len(committer.applied), len(recorder.events))
	}
}

func TestSessionRestoreIsAnUpdate(t *testing.T) {
	session, committer, _ := newTestSession(domain.Scope{TenantID: "t-1", ActorID: "u-1"})
	doc := &domain.Document{ID: "d-1", FileName: "policy.pdf"}
	actor := "u-3"
	doc.MarkDeleted(&actor, fixedNow.Add(-time.Hour))
	session.Track(doc)
	doc.Restore()
	if err := session.Modify(doc); err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if err := session.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	change := committer.applied[0][0]
	if change.Kind != domain.ChangeUpdated {
		t.Fatalf("expected update, got %s", change.Kind)
	}
	want := []string{"UpdatedAt", "IsDeleted", "DeletedAt", "DeletedBy"}
	if !reflect.DeepEqual(change.ChangedFields, want) {
		t.Fatalf("changed fields = %v, want %v", change.ChangedFields, want)
	}
}
