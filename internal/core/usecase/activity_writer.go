package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
	"github.com/kirillkom/compliance-auditor/internal/core/tracking"
)

const (
	systemActorName  = "System"
	unknownActorName = "Unknown User"

	maxEnumeratedFields = 3
)

var createdActivityTypes = map[string]struct{}{
	domain.EntityTypeProject:            {},
	domain.EntityTypeDocument:           {},
	domain.EntityTypeFinding:            {},
	domain.EntityTypeOrganization:       {},
	domain.EntityTypeOrganizationMember: {},
	domain.EntityTypeProjectMember:      {},
	domain.EntityTypeRemediationTask:    {},
}

// Attributes whose change is worth an activity entry. Bookkeeping fields such
// as UpdatedAt, LastAnalyzedAt or ExtractedText never qualify.
var significantAttributes = map[string][]string{
	domain.EntityTypeProject:            {"Name", "Description", "Status", "IsDeleted"},
	domain.EntityTypeDocument:           {"FileName", "ContentType", "IsDeleted"},
	domain.EntityTypeFinding:            {"Title", "Description", "Status", "RiskLevel", "WorkflowStatus", "AssignedTo", "DueDate", "RemediationGuidance", "IsDeleted"},
	domain.EntityTypeEvidence:           {"Excerpt", "EvidenceType", "RelevanceScore", "IsDeleted"},
	domain.EntityTypeOrganization:       {"Name", "IsDeleted"},
	domain.EntityTypeOrganizationMember: {"Role", "IsDeleted"},
	domain.EntityTypeProjectMember:      {"Role", "IsDeleted"},
	domain.EntityTypeRemediationTask:    {"Title", "Status", "AssignedTo", "DueDate", "Priority", "IsDeleted"},
	domain.EntityTypeProjectFramework:   {"IsActive"},
}

// ActivityWriter turns lifecycle events into activity log entries. Every
// failure is logged and swallowed.
type ActivityWriter struct {
	store   ports.ActivityLogStore
	users   ports.UserDirectory
	metrics ports.AuditMetrics
	now     func() time.Time
}

func NewActivityWriter(store ports.ActivityLogStore, users ports.UserDirectory, metrics ports.AuditMetrics) *ActivityWriter {
	return &ActivityWriter{
		store:   store,
		users:   users,
		metrics: metrics,
		now:     time.Now,
	}
}

// Register subscribes the three writers to the dispatcher.
func (w *ActivityWriter) Register(dispatcher *tracking.Dispatcher) {
	dispatcher.Subscribe(domain.ChangeCreated, "activity_created", w.OnCreated)
	dispatcher.Subscribe(domain.ChangeUpdated, "activity_updated", w.OnUpdated)
	dispatcher.Subscribe(domain.ChangeDeleted, "activity_deleted", w.OnDeleted)
}

func (w *ActivityWriter) OnCreated(ctx context.Context, event domain.LifecycleEvent) error {
	if !event.Scope.HasTenant() {
		return nil
	}
	if _, ok := createdActivityTypes[event.EntityType]; !ok {
		return nil
	}
	metadata := map[string]any{
		"createdAt": event.OccurredAt.UTC().Format(time.RFC3339Nano),
		"createdBy": event.Scope.Actor(),
	}
	description := fmt.Sprintf("Created %s '%s'", entityLabel(event.EntityType), event.EntityName)
	w.write(ctx, event, domain.ActivityCreated, description, metadata)
	return nil
}

func (w *ActivityWriter) OnUpdated(ctx context.Context, event domain.LifecycleEvent) error {
	if !event.Scope.HasTenant() {
		return nil
	}
	significant := SignificantChanges(event.EntityType, event.ChangedFields)
	if len(significant) == 0 {
		return nil
	}

	description := fmt.Sprintf("Updated %s '%s'", entityLabel(event.EntityType), event.EntityName)
	if len(significant) <= maxEnumeratedFields {
		description = fmt.Sprintf("%s: %s", description, strings.Join(significant, ", "))
	}
	metadata := map[string]any{
		"modifiedProperties": significant,
	}
	w.write(ctx, event, domain.ActivityUpdated, description, metadata)
	return nil
}

func (w *ActivityWriter) OnDeleted(ctx context.Context, event domain.LifecycleEvent) error {
	if !event.Scope.HasTenant() || event.Entity == nil {
		return nil
	}
	metadata := map[string]any{
		"deletedAt": nil,
		"deletedBy": nil,
		"isDeleted": true,
	}
	if tombstone := event.Entity.Tombstone(); tombstone != nil {
		metadata["isDeleted"] = tombstone.IsDeleted
		metadata["deletedBy"] = tombstone.DeletedBy
		if tombstone.DeletedAt != nil {
			metadata["deletedAt"] = tombstone.DeletedAt.UTC().Format(time.RFC3339Nano)
		}
	}
	description := fmt.Sprintf("Deleted %s '%s'", entityLabel(event.EntityType), event.EntityName)
	w.write(ctx, event, domain.ActivityDeleted, description, metadata)
	return nil
}

// CheckActivity describes an audit-check milestone that is not an entity change.
type CheckActivity struct {
	Type        domain.ActivityType
	ProjectID   string
	RunID       string
	EntityName  string
	Description string
	Metadata    map[string]any
}

// RecordCheck writes an audit-check activity entry on a best-effort basis.
func (w *ActivityWriter) RecordCheck(ctx context.Context, scope domain.Scope, activity CheckActivity) {
	if !scope.HasTenant() {
		return
	}
	event := domain.LifecycleEvent{
		EntityType: domain.EntityTypeCheckRun,
		EntityID:   activity.RunID,
		EntityName: activity.EntityName,
		ProjectID:  activity.ProjectID,
		Scope:      scope,
		OccurredAt: w.now().UTC(),
	}
	w.write(ctx, event, activity.Type, activity.Description, activity.Metadata)
}

func (w *ActivityWriter) write(
	ctx context.Context,
	event domain.LifecycleEvent,
	activityType domain.ActivityType,
	description string,
	metadata map[string]any,
) {
	if err := w.append(ctx, event, activityType, description, metadata); err != nil {
		slog.Error("activity_write_failed",
			"activity_type", string(activityType),
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"tenant_id", event.Scope.TenantID,
			"error", err,
		)
		if w.metrics != nil {
			w.metrics.IncActivityWriteFailure(activityType)
		}
	}
}

func (w *ActivityWriter) append(
	ctx context.Context,
	event domain.LifecycleEvent,
	activityType domain.ActivityType,
	description string,
	metadata map[string]any,
) error {
	rawMetadata, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}

	createdAt := event.OccurredAt
	if createdAt.IsZero() {
		createdAt = w.now()
	}

	entry := &domain.ActivityLog{
		ID:           uuid.NewString(),
		TenantID:     event.Scope.TenantID,
		ActorID:      event.Scope.Actor(),
		ActivityType: activityType,
		EntityType:   event.EntityType,
		EntityID:     event.EntityID,
		EntityName:   event.EntityName,
		Metadata:     rawMetadata,
		Description:  description,
		CreatedAt:    createdAt.UTC(),
	}
	if event.ProjectID != "" {
		projectID := event.ProjectID
		entry.ProjectID = &projectID
	}
	entry.ActorName, entry.ActorEmail = w.resolveActor(ctx, event.Scope)

	if err := w.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append activity log: %w", err)
	}
	return nil
}

func (w *ActivityWriter) resolveActor(ctx context.Context, scope domain.Scope) (string, string) {
	actorID := scope.Actor()
	if actorID == nil {
		return systemActorName, ""
	}
	if w.users == nil {
		return unknownActorName, ""
	}
	user, err := w.users.GetUserByID(ctx, scope.TenantID, *actorID)
	if err != nil || user == nil {
		if err != nil && !domain.IsKind(err, domain.ErrNotFound) {
			slog.Warn("actor_lookup_failed", "actor_id", *actorID, "error", err)
		}
		return unknownActorName, ""
	}
	name := user.DisplayName()
	if name == "" {
		name = unknownActorName
	}
	return name, user.Email
}

// SignificantChanges filters changed attribute names down to the ones that
// matter for the activity history of entityType.
func SignificantChanges(entityType string, changed []string) []string {
	allowed, ok := significantAttributes[entityType]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(changed))
	for _, name := range changed {
		for _, candidate := range allowed {
			if name == candidate {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// entityLabel turns "OrganizationMember" into "organization member".
func entityLabel(entityType string) string {
	var b strings.Builder
	for i, r := range entityType {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
