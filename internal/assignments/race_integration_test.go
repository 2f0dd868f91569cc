//go:build integration

package assignments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/vendorflow-backend/internal/orders"
	"github.com/angelmondragon/vendorflow-backend/internal/workflowtest"
	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/migrate"
)

// DeleteConfirmRaceSuite races order deletion against vendor confirmation on
// a real Postgres so row locks and SERIALIZABLE retries behave as deployed.
type DeleteConfirmRaceSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	db        *gorm.DB
}

func (s *DeleteConfirmRaceSuite) SetupSuite() {
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("vendorflow"),
		postgres.WithUsername("vendorflow"),
		postgres.WithPassword("vendorflow"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(time.Minute)),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	conn, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	s.Require().NoError(err)
	sqlDB, err := conn.DB()
	s.Require().NoError(err)
	migrator, err := migrate.NewEmbedded(sqlDB, nil)
	s.Require().NoError(err)
	s.Require().NoError(migrator.Up(ctx))
	s.db = conn
}

func (s *DeleteConfirmRaceSuite) TearDownSuite() {
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *DeleteConfirmRaceSuite) TestExactlyOneSideWins() {
	t := s.T()
	env := workflowtest.NewWithDB(t, s.db)
	orderSvc, err := orders.NewService(env.Client, orders.NewRepository(env.DB), env.Vendors, env.Audit, env.Outbox, env.Notifier, nil, env.Logger)
	s.Require().NoError(err)
	svc, err := NewService(ServiceParams{
		Tx:       env.Client,
		Repo:     NewRepository(env.DB),
		Orders:   orderSvc,
		Vendors:  env.Vendors,
		Audit:    env.Audit,
		Outbox:   env.Outbox,
		Notifier: env.Notifier,
		Logger:   env.Logger,
		Workflow: config.WorkflowConfig{TxSlots: 8, TxMaxWait: time.Second, TxTimeout: 10 * time.Second},
	})
	s.Require().NoError(err)

	vendorID := env.Vendor(t, "Race Supplies "+uuid.NewString()[:8], true)
	actor := uuid.New()

	for round := 0; round < 10; round++ {
		order, err := orderSvc.CreateOrder(context.Background(), orders.CreateOrderInput{
			OrderNumber: "RACE-" + uuid.NewString()[:8],
			Items: []orders.ItemInput{{
				ProductName:  "Bearing",
				Quantity:     4,
				PricePerUnit: decimal.RequireFromString("3.20"),
			}},
			VendorID:    &vendorID,
			ActorUserID: actor,
		})
		s.Require().NoError(err)
		var a models.Assignment
		s.Require().NoError(env.DB.Where("order_id = ?", order.ID).First(&a).Error)

		var (
			wg                    sync.WaitGroup
			deleteErr, confirmErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			deleteErr = orderSvc.DeleteOrder(context.Background(), order.ID, actor)
		}()
		go func() {
			defer wg.Done()
			_, confirmErr = svc.UpdateStatus(context.Background(), UpdateStatusInput{
				AssignmentID: a.ID,
				VendorID:     vendorID,
				Status:       enums.AssignmentStatusVendorConfirmedFull,
			})
		}()
		wg.Wait()

		s.False(deleteErr == nil && confirmErr == nil, "round %d: delete and confirm both succeeded", round)
		switch {
		case deleteErr == nil:
			s.True(pkgerrors.HasCode(confirmErr, pkgerrors.CodeNotFound) || pkgerrors.HasCode(confirmErr, pkgerrors.CodeConcurrency),
				"round %d: confirm after delete got %v", round, confirmErr)
			var count int64
			s.Require().NoError(env.DB.Model(&models.Assignment{}).Where("order_id = ?", order.ID).Count(&count).Error)
			s.Zero(count)
		case confirmErr == nil:
			s.True(pkgerrors.HasCode(deleteErr, pkgerrors.CodeOrderLocked) || pkgerrors.HasCode(deleteErr, pkgerrors.CodeConcurrency),
				"round %d: delete after confirm got %v", round, deleteErr)
			current, err := orderSvc.GetOrderByID(context.Background(), order.ID)
			s.Require().NoError(err)
			s.Equal(enums.OrderStatusProcessing, current.Status)
		default:
			s.True(pkgerrors.HasCode(deleteErr, pkgerrors.CodeConcurrency) || pkgerrors.HasCode(confirmErr, pkgerrors.CodeConcurrency),
				"round %d: both failed without a retryable conflict: %v / %v", round, deleteErr, confirmErr)
		}
	}
}

func TestDeleteConfirmRaceSuite(t *testing.T) {
	suite.Run(t, new(DeleteConfirmRaceSuite))
}
