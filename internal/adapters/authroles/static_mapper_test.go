package authroles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/o4o-platform/ai-gateway/internal/domain/auth"
)

func TestStaticRoleMapper(t *testing.T) {
	mapper := StaticRoleMapper{AdminGroup: "gateway-admins"}

	assert.Equal(t, domainauth.RoleAdmin, mapper.Map([]string{"devs", "gateway-admins"}))
	assert.Equal(t, domainauth.RoleUser, mapper.Map([]string{"devs"}))
	assert.Equal(t, domainauth.RoleUser, mapper.Map(nil))
}

func TestStaticRoleMapper_NoAdminGroupConfigured(t *testing.T) {
	mapper := StaticRoleMapper{}
	assert.Equal(t, domainauth.RoleUser, mapper.Map([]string{"gateway-admins"}))
}
