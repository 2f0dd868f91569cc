package vendorcontext

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorflow-backend/api/middleware"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
)

func request(id *middleware.Identity) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), *id))
	}
	return req
}

func TestScope(t *testing.T) {
	vendorID := uuid.New()

	scope, _, err := Scope(request(&middleware.Identity{UserID: uuid.New(), Roles: []enums.Role{enums.RoleOperations}}))
	require.NoError(t, err)
	assert.Nil(t, scope, "staff see every vendor")

	scope, _, err = Scope(request(&middleware.Identity{UserID: uuid.New(), Roles: []enums.Role{enums.RoleVendor}, VendorID: &vendorID}))
	require.NoError(t, err)
	require.NotNil(t, scope)
	assert.Equal(t, vendorID, *scope)

	_, _, err = Scope(request(&middleware.Identity{UserID: uuid.New(), Roles: []enums.Role{enums.RoleVendor}}))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	_, _, err = Scope(request(nil))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestResolveVendorIDRejectsStaff(t *testing.T) {
	_, _, err := ResolveVendorID(request(&middleware.Identity{UserID: uuid.New(), Roles: []enums.Role{enums.RoleAdmin}}))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}
