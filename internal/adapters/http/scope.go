package httpadapter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

const (
	tenantHeader = "X-Tenant-ID"
	userHeader   = "X-User-ID"
	roleHeader   = "X-User-Role"
)

// scopeFromRequest reads the caller identity forwarded by the gateway.
func scopeFromRequest(r *http.Request) (domain.Scope, error) {
	tenantID := strings.TrimSpace(r.Header.Get(tenantHeader))
	if tenantID == "" {
		return domain.Scope{}, domain.WrapError(domain.ErrUnauthorized, "resolve scope", errors.New(tenantHeader+" header is required"))
	}

	role := domain.OrgRoleMember
	switch raw := strings.ToLower(strings.TrimSpace(r.Header.Get(roleHeader))); raw {
	case "", string(domain.OrgRoleMember):
	case string(domain.OrgRoleAdmin):
		role = domain.OrgRoleAdmin
	default:
		return domain.Scope{}, domain.WrapError(domain.ErrInvalidInput, "resolve scope", fmt.Errorf("unknown %s %q", roleHeader, raw))
	}

	return domain.Scope{
		TenantID: tenantID,
		ActorID:  strings.TrimSpace(r.Header.Get(userHeader)),
		OrgRole:  role,
	}, nil
}
