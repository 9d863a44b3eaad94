package tracking

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

func TestDiffComparesTimesByInstant(t *testing.T) {
	utc := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	local := utc.In(time.FixedZone("UTC+3", 3*60*60))

	before := takeSnapshot(&domain.Finding{ID: "f-1", DueDate: &utc})
	after := takeSnapshot(&domain.Finding{ID: "f-1", DueDate: &local})
	if changed := diff(before, after); len(changed) != 0 {
		t.Fatalf("expected no changes, got %v", changed)
	}
}

func TestSnapshotIsIsolatedFromLaterMutation(t *testing.T) {
	finding := &domain.Finding{ID: "f-1", RawResult: json.RawMessage(`{"a":1}`)}
	before := takeSnapshot(finding)
	finding.RawResult[5] = '2'

	changed := diff(before, takeSnapshot(finding))
	if !reflect.DeepEqual(changed, []string{"RawResult"}) {
		t.Fatalf("expected RawResult change, got %v", changed)
	}
}

func TestSnapshotFlattensEmbeddedTombstone(t *testing.T) {
	snap := takeSnapshot(&domain.Document{ID: "d-1"})
	for _, name := range []string{"IsDeleted", "DeletedAt", "DeletedBy"} {
		if _, ok := snap.values[name]; !ok {
			t.Fatalf("expected %s in snapshot fields %v", name, snap.fields)
		}
	}
}

func TestNilAndEmptySlicesCompareEqual(t *testing.T) {
	before := takeSnapshot(&domain.Finding{ID: "f-1"})
	after := takeSnapshot(&domain.Finding{ID: "f-1", RawResult: json.RawMessage{}})
	if changed := diff(before, after); len(changed) != 0 {
		t.Fatalf("expected no changes, got %v", changed)
	}
}
