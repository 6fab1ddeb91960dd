package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func requireRoleStatus(t *testing.T, callerRole string, required string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if callerRole != "" {
		c.Set("role", callerRole)
	}

	RequireRole(required)(c)
	if c.IsAborted() {
		return w.Code
	}
	return http.StatusOK
}

func TestRequireRoleLadder(t *testing.T) {
	assert.Equal(t, http.StatusOK, requireRoleStatus(t, RoleAdmin, RoleOperator))
	assert.Equal(t, http.StatusOK, requireRoleStatus(t, RoleTechnician, RoleOperator))
	assert.Equal(t, http.StatusOK, requireRoleStatus(t, RoleTechnician, RoleTechnician))
	assert.Equal(t, http.StatusForbidden, requireRoleStatus(t, RoleOperator, RoleTechnician))
	assert.Equal(t, http.StatusForbidden, requireRoleStatus(t, RoleTechnician, RoleAdmin))
}

func TestRequireRoleWithoutRoleRejects(t *testing.T) {
	// No role in the context, as when the auth middleware never ran.
	assert.Equal(t, http.StatusForbidden, requireRoleStatus(t, "", RoleOperator))
}

func TestRequireRoleUnknownRoleRejects(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, requireRoleStatus(t, "visitor", RoleOperator))
}
