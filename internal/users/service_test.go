package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
)

func TestDirectoryResolvesRolesAndVendors(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	ctx := context.Background()
	vendorID := uuid.New()

	admin, err := svc.Create(ctx, CreateUserDTO{Email: "a@vf.test", FullName: "Ada", Roles: []enums.Role{enums.RoleAdmin, enums.RoleAccounts}})
	require.NoError(t, err)
	accounts, err := svc.Create(ctx, CreateUserDTO{Email: "b@vf.test", FullName: "Bo", Roles: []enums.Role{enums.RoleAccounts}})
	require.NoError(t, err)
	vendorUser, err := svc.Create(ctx, CreateUserDTO{Email: "v@vf.test", FullName: "Vi", VendorID: &vendorID, Roles: []enums.Role{enums.RoleVendor}})
	require.NoError(t, err)
	inactive, err := svc.Create(ctx, CreateUserDTO{Email: "x@vf.test", FullName: "Xe", Roles: []enums.Role{enums.RoleAdmin}})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	ids, err := svc.UserIDsForRoles(ctx, enums.RoleAdmin, enums.RoleAccounts)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{admin.ID, accounts.ID}, ids)

	ids, err = svc.UserIDsForVendor(ctx, vendorID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{vendorUser.ID}, ids)

	loaded, err := svc.FindByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Roles, 2)
}

func TestCreateValidation(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateUserDTO{Email: "v@vf.test", FullName: "Vi", Roles: []enums.Role{enums.RoleVendor}})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(context.Background(), CreateUserDTO{Email: "q@vf.test", FullName: "Q", Roles: []enums.Role{"OWNER"}})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.FindByID(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
