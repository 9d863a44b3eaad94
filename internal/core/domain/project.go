package domain

import (
	"strings"
	"time"
)

type Project struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	SoftDelete
}

func (p *Project) EntityType() string  { return EntityTypeProject }
func (p *Project) EntityID() string    { return p.ID }
func (p *Project) DisplayName() string { return p.Name }
func (p *Project) ProjectRef() string  { return p.ID }

func (p *Project) Touch(now time.Time, created bool) {
	if created && p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}

type ProjectRole string

const (
	ProjectRoleOwner    ProjectRole = "Owner"
	ProjectRoleManager  ProjectRole = "Manager"
	ProjectRoleAuditor  ProjectRole = "Auditor"
	ProjectRoleReadOnly ProjectRole = "ReadOnly"
)

func (r ProjectRole) CanWrite() bool {
	switch r {
	case ProjectRoleOwner, ProjectRoleManager, ProjectRoleAuditor:
		return true
	default:
		return false
	}
}

type ProjectMember struct {
	TenantID  string      `json:"tenant_id"`
	ProjectID string      `json:"project_id"`
	UserID    string      `json:"user_id"`
	Role      ProjectRole `json:"role"`
}

type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Email
	}
	return name
}
