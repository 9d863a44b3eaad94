package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type ActivityType string

const (
	ActivityCreated                ActivityType = "Created"
	ActivityUpdated                ActivityType = "Updated"
	ActivityDeleted                ActivityType = "Deleted"
	ActivityComplianceCheckStarted ActivityType = "ComplianceCheckStarted"
	ActivityComplianceCheckDone    ActivityType = "ComplianceCheckCompleted"
	ActivityComplianceCheckFailed  ActivityType = "ComplianceCheckFailed"
)

func ParseActivityType(raw string) (ActivityType, bool) {
	for _, candidate := range []ActivityType{
		ActivityCreated,
		ActivityUpdated,
		ActivityDeleted,
		ActivityComplianceCheckStarted,
		ActivityComplianceCheckDone,
		ActivityComplianceCheckFailed,
	} {
		if strings.EqualFold(string(candidate), strings.TrimSpace(raw)) {
			return candidate, true
		}
	}
	return "", false
}

// ActivityLog is an append-only history entry. It is never updated or deleted.
type ActivityLog struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	ProjectID    *string         `json:"project_id,omitempty"`
	ActorID      *string         `json:"actor_id,omitempty"`
	ActorName    string          `json:"actor_name"`
	ActorEmail   string          `json:"actor_email,omitempty"`
	ActivityType ActivityType    `json:"activity_type"`
	EntityType   string          `json:"entity_type"`
	EntityID     string          `json:"entity_id"`
	EntityName   string          `json:"entity_name,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
}

const (
	DefaultActivityPageSize = 50
	MaxActivityPageSize     = 1000
)

type ActivityFilter struct {
	TenantID     string
	ProjectID    string
	ActivityType ActivityType
	ActorID      string
	EntityType   string
	EntityID     string
	From         *time.Time
	To           *time.Time
	Search       string
	Limit        int
	Offset       int
}

// Normalize applies the default page size and clamps oversized pages.
func (f ActivityFilter) Normalize() ActivityFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultActivityPageSize
	}
	if f.Limit > MaxActivityPageSize {
		f.Limit = MaxActivityPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

type ActivityPage struct {
	Items []ActivityLog `json:"items"`
	Total int           `json:"total"`
}
