package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/acadportal-api/internal/models"
)

func runRBAC(t *testing.T, claims *models.JWTClaims, paramID string, allowed ...string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if paramID != "" {
		c.Params = gin.Params{{Key: "id", Value: paramID}}
	}
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}
	RBAC(allowed...)(c)
	return c, w
}

func TestRBACAllowsListedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}
	c, _ := runRBAC(t, claims, "someone-else", "ADMIN", "SUPERADMIN")
	assert.False(t, c.IsAborted())
}

func TestRBACRejectsUnlistedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}
	c, w := runRBAC(t, claims, "", "ADMIN", "SUPERADMIN")
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfMatchesProfileID(t *testing.T) {
	// student tokens carry the profile id because student routes address
	// the profile, not the user account
	claims := &models.JWTClaims{UserID: "user-1", ProfileID: "stu-profile-1", Role: models.RoleStudent}
	c, _ := runRBAC(t, claims, "stu-profile-1", "ADMIN", "SUPERADMIN", "FACULTY", "SELF")
	assert.False(t, c.IsAborted())
}

func TestRBACSelfMatchesUserID(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}
	c, _ := runRBAC(t, claims, "user-1", "ADMIN", "SELF")
	assert.False(t, c.IsAborted())
}

func TestRBACSelfRejectsForeignProfile(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", ProfileID: "stu-profile-1", Role: models.RoleStudent}
	c, w := runRBAC(t, claims, "stu-profile-2", "ADMIN", "SUPERADMIN", "FACULTY", "SELF")
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfWithoutProfileClaimRejectsProfileParam(t *testing.T) {
	// a token minted without a profile id must not match a profile route
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}
	c, w := runRBAC(t, claims, "stu-profile-1", "ADMIN", "SUPERADMIN", "FACULTY", "SELF")
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACMissingClaims(t *testing.T) {
	c, w := runRBAC(t, nil, "user-1", "ADMIN", "SELF")
	require.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
