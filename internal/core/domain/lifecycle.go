package domain

import "time"

type ChangeKind string

const (
	ChangeCreated ChangeKind = "Created"
	ChangeUpdated ChangeKind = "Updated"
	ChangeDeleted ChangeKind = "Deleted"
)

// Change is one rewritten entry of a unit of work. Deleted changes are always
// persisted as updates of the tombstone fields.
type Change struct {
	Kind          ChangeKind
	Entity        Auditable
	ChangedFields []string
}

type LifecycleEvent struct {
	Kind          ChangeKind
	EntityType    string
	EntityID      string
	EntityName    string
	ProjectID     string
	ChangedFields []string
	Entity        Auditable
	Scope         Scope
	OccurredAt    time.Time
}

// LifecycleMessage is the wire form of a lifecycle event forwarded to the
// message bus.
type LifecycleMessage struct {
	Kind          ChangeKind `json:"kind"`
	TenantID      string     `json:"tenant_id"`
	ActorID       string     `json:"actor_id,omitempty"`
	EntityType    string     `json:"entity_type"`
	EntityID      string     `json:"entity_id"`
	EntityName    string     `json:"entity_name,omitempty"`
	ProjectID     string     `json:"project_id,omitempty"`
	ChangedFields []string   `json:"changed_fields,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

func (e LifecycleEvent) Message() LifecycleMessage {
	return LifecycleMessage{
		Kind:          e.Kind,
		TenantID:      e.Scope.TenantID,
		ActorID:       e.Scope.ActorID,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		EntityName:    e.EntityName,
		ProjectID:     e.ProjectID,
		ChangedFields: e.ChangedFields,
		OccurredAt:    e.OccurredAt,
	}
}
