package vendors

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
)

func TestFindVendorEligibility(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateVendorInput{CompanyName: " Acme Supplies ", Verified: true})
	require.NoError(t, err)
	assert.Equal(t, "Acme Supplies", created.CompanyName)

	v, err := svc.FindVendor(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, v.Eligible())

	require.NoError(t, svc.SetStatus(ctx, created.ID, enums.VendorStatusSuspended, true))
	v, err = svc.FindVendor(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, v.Active)
	assert.False(t, v.Eligible())

	_, err = svc.FindVendor(ctx, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.HasCode(svc.SetStatus(ctx, uuid.New(), enums.VendorStatusActive, true), pkgerrors.CodeNotFound))
}

func TestCreateRequiresName(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateVendorInput{CompanyName: "  "})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
