package domain

import "strings"

type OrgRole string

const (
	OrgRoleAdmin  OrgRole = "admin"
	OrgRoleMember OrgRole = "member"
)

// Scope identifies who is acting and for which tenant. It is passed explicitly
// to every use case and unit of work instead of living in ambient state.
type Scope struct {
	TenantID string  `json:"tenant_id"`
	ActorID  string  `json:"actor_id,omitempty"`
	OrgRole  OrgRole `json:"org_role,omitempty"`
}

func (s Scope) HasTenant() bool {
	return strings.TrimSpace(s.TenantID) != ""
}

// Actor returns nil for system-initiated operations.
func (s Scope) Actor() *string {
	if strings.TrimSpace(s.ActorID) == "" {
		return nil
	}
	id := s.ActorID
	return &id
}

func (s Scope) IsAdmin() bool {
	return s.OrgRole == OrgRoleAdmin
}

// SystemScope is used by background processing that acts on behalf of a tenant
// without a human actor.
func SystemScope(tenantID string) Scope {
	return Scope{TenantID: tenantID}
}
