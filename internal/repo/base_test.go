package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
)

func TestBaseDB_BindsContext(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx.Statement)
	assert.Equal(t, ctx, withCtx.Statement.Context)

	assert.Same(t, db, base.DB(nil))
}

func TestBaseBind(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)
	assert.Same(t, db, base.Bind(nil).db)

	tx := db.Begin()
	defer tx.Rollback()
	assert.Same(t, tx, base.Bind(tx).db)
}

func TestPaginate(t *testing.T) {
	db := dbtest.Open(t)
	for i := 0; i < 7; i++ {
		require.NoError(t, db.Create(&models.Order{
			OrderNumber: uuid.NewString(),
			Status:      enums.OrderStatusReceived,
			TotalValue:  decimal.NewFromInt(int64(i)),
			CreatedBy:   uuid.New(),
		}).Error)
	}

	var rows []models.Order
	total, err := Paginate(db.Model(&models.Order{}).Order("order_number ASC"), pagination.Page{Page: 2, Limit: 3}, &rows)
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	assert.Len(t, rows, 3)

	rows = nil
	total, err = Paginate(db.Model(&models.Order{}).Where("status = ?", enums.OrderStatusClosed), pagination.Page{}, &rows)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)
}
