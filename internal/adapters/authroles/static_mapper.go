package authroles

import (
	domainauth "github.com/o4o-platform/ai-gateway/internal/domain/auth"
)

// StaticRoleMapper maps token claim groups to a role by membership.
// Any caller with a verified token is at least a user; the admin role
// requires membership in the configured admin group.
type StaticRoleMapper struct {
	AdminGroup string
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	for _, g := range groups {
		if m.AdminGroup != "" && g == m.AdminGroup {
			return domainauth.RoleAdmin
		}
	}
	return domainauth.RoleUser
}
