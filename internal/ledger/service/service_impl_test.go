package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	charitydomain "github.com/smallbiznis/giftpact/internal/charity/domain"
	charityrepository "github.com/smallbiznis/giftpact/internal/charity/repository"
	checkoutdomain "github.com/smallbiznis/giftpact/internal/checkout/domain"
	"github.com/smallbiznis/giftpact/internal/config"
	ledgerdomain "github.com/smallbiznis/giftpact/internal/ledger/domain"
	"github.com/smallbiznis/giftpact/internal/migration"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.Migrate(db))
	return db
}

func setupService(t *testing.T, db *gorm.DB) ledgerdomain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Prefs: charityrepository.Provide(),
		Cfg:   config.Config{DefaultCause: "general-fund"},
	})
}

func settledBatch(node *snowflake.Node, userID string, charityShare, credits int64) []ledgerdomain.SettledPurchase {
	return []ledgerdomain.SettledPurchase{{
		ID:            node.Generate(),
		UserID:        userID,
		ProductName:   "Acme Gift Card",
		PurchasePrice: 9450,
		ProfitAmount:  450,
		CharityShare:  charityShare,
		CreditsEarned: credits,
		CompletedAt:   time.Now().UTC(),
	}}
}

func TestApplyFansOutAcrossPreferences(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	for i, slug := range []string{"clean-water", "education", "forests"} {
		require.NoError(t, db.Create(&charitydomain.Preference{
			ID:            node.Generate(),
			UserID:        "user-1",
			CauseSlug:     slug,
			CauseName:     slug,
			PriorityOrder: i + 1,
			IsActive:      true,
			CreatedAt:     time.Now().UTC(),
		}).Error)
	}

	require.NoError(t, svc.Apply(context.Background(), "cs_test_1", settledBatch(node, "user-1", 900, 90)))

	var contributions []ledgerdomain.Contribution
	require.NoError(t, db.Order("cause_slug ASC").Find(&contributions).Error)
	require.Len(t, contributions, 3)
	var total int64
	for _, contribution := range contributions {
		require.Equal(t, int64(300), contribution.Amount)
		require.Equal(t, "cs_test_1", contribution.SessionID)
		total += contribution.Amount
	}
	require.Equal(t, int64(900), total)
}

func TestApplyRemainderGoesToHighestPriority(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	for i, slug := range []string{"clean-water", "education", "forests"} {
		require.NoError(t, db.Create(&charitydomain.Preference{
			ID:            node.Generate(),
			UserID:        "user-1",
			CauseSlug:     slug,
			CauseName:     slug,
			PriorityOrder: i + 1,
			IsActive:      true,
			CreatedAt:     time.Now().UTC(),
		}).Error)
	}

	require.NoError(t, svc.Apply(context.Background(), "cs_test_1", settledBatch(node, "user-1", 1000, 100)))

	var contributions []ledgerdomain.Contribution
	require.NoError(t, db.Find(&contributions).Error)
	require.Len(t, contributions, 3)
	byCause := map[string]int64{}
	var total int64
	for _, contribution := range contributions {
		byCause[contribution.CauseSlug] = contribution.Amount
		total += contribution.Amount
	}
	require.Equal(t, int64(1000), total)
	require.Equal(t, int64(334), byCause["clean-water"])
	require.Equal(t, int64(333), byCause["education"])
	require.Equal(t, int64(333), byCause["forests"])
}

func TestApplyFallsBackToDefaultCause(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	require.NoError(t, svc.Apply(context.Background(), "cs_test_1", settledBatch(node, "user-1", 900, 90)))

	var contributions []ledgerdomain.Contribution
	require.NoError(t, db.Find(&contributions).Error)
	require.Len(t, contributions, 1)
	require.Equal(t, "general-fund", contributions[0].CauseSlug)
	require.Equal(t, int64(900), contributions[0].Amount)
}

func TestApplyDuplicateSessionIsNoOp(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	batch := settledBatch(node, "user-1", 900, 90)
	require.NoError(t, svc.Apply(context.Background(), "cs_test_1", batch))
	require.NoError(t, svc.Apply(context.Background(), "cs_test_1", batch))

	var account ledgerdomain.CreditAccount
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&account).Error)
	require.Equal(t, int64(90), account.Balance)
	require.Equal(t, int64(90), account.LifetimeEarned)

	var applications int64
	require.NoError(t, db.Model(&ledgerdomain.Application{}).Count(&applications).Error)
	require.Equal(t, int64(1), applications)

	var contributions int64
	require.NoError(t, db.Model(&ledgerdomain.Contribution{}).Count(&contributions).Error)
	require.Equal(t, int64(1), contributions)
}

func TestApplyAccumulatesAcrossSessions(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	require.NoError(t, svc.Apply(context.Background(), "cs_test_1", settledBatch(node, "user-1", 900, 90)))
	require.NoError(t, svc.Apply(context.Background(), "cs_test_2", settledBatch(node, "user-1", 500, 50)))

	var account ledgerdomain.CreditAccount
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&account).Error)
	require.Equal(t, int64(140), account.Balance)
	require.Equal(t, int64(140), account.LifetimeEarned)

	var history int64
	require.NoError(t, db.Model(&ledgerdomain.HistoryRow{}).Count(&history).Error)
	require.Equal(t, int64(2), history)
}

func TestApplyConcurrentSessionsSameUserLoseNothing(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	// The shared-cache in-memory database allows one writer at a time.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	batches := map[string][]ledgerdomain.SettledPurchase{
		"cs_test_1": settledBatch(node, "user-1", 900, 90),
		"cs_test_2": settledBatch(node, "user-1", 500, 50),
	}

	errs := make(chan error, len(batches))
	var wg sync.WaitGroup
	for sessionID, batch := range batches {
		wg.Add(1)
		go func(sessionID string, batch []ledgerdomain.SettledPurchase) {
			defer wg.Done()
			errs <- svc.Apply(context.Background(), sessionID, batch)
		}(sessionID, batch)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var account ledgerdomain.CreditAccount
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&account).Error)
	require.Equal(t, int64(140), account.Balance)
	require.Equal(t, int64(140), account.LifetimeEarned)
}

func seedSettledPurchase(t *testing.T, db *gorm.DB, node *snowflake.Node, sessionID string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, db.Create(&checkoutdomain.Purchase{
		ID:                node.Generate(),
		UserID:            "user-1",
		ProductID:         42,
		ProductName:       "Acme Gift Card",
		FaceAmount:        10000,
		Currency:          "USD",
		PurchasePrice:     9450,
		CostPrice:         9000,
		ProfitAmount:      450,
		CompanyShare:      225,
		CharityShare:      225,
		CreditsEarned:     22,
		Status:            checkoutdomain.PurchaseStatusCompleted,
		SessionID:         sessionID,
		FulfillmentStatus: checkoutdomain.FulfillmentStatusPending,
		RecipientEmail:    "buyer@example.com",
		CreatedAt:         now,
		CompletedAt:       &now,
	}).Error)
}

func TestReapplyPendingRecoversMissedSession(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	// A settled purchase with no application row is what a ledger failure
	// after webhook acknowledgement leaves behind.
	seedSettledPurchase(t, db, node, "cs_test_1")

	applied, err := svc.ReapplyPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, applied)

	var account ledgerdomain.CreditAccount
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&account).Error)
	require.Equal(t, int64(22), account.Balance)

	var contribution ledgerdomain.Contribution
	require.NoError(t, db.First(&contribution, "session_id = ?", "cs_test_1").Error)
	require.Equal(t, int64(225), contribution.Amount)

	applied, err = svc.ReapplyPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, applied)

	require.NoError(t, db.Where("user_id = ?", "user-1").First(&account).Error)
	require.Equal(t, int64(22), account.Balance)
}

func TestReapplyPendingSkipsAppliedSessions(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	seedSettledPurchase(t, db, node, "cs_test_1")
	require.NoError(t, svc.Apply(context.Background(), "cs_test_1", settledBatch(node, "user-1", 225, 22)))

	applied, err := svc.ReapplyPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, applied)
}

func TestApplyRejectsInvalidBatches(t *testing.T) {
	db := setupDB(t)
	svc := setupService(t, db)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Apply(context.Background(), "", settledBatch(node, "user-1", 900, 90)), ledgerdomain.ErrInvalidSession)
	require.ErrorIs(t, svc.Apply(context.Background(), "cs_test_1", nil), ledgerdomain.ErrInvalidBatch)

	mixed := append(settledBatch(node, "user-1", 900, 90), settledBatch(node, "user-2", 500, 50)...)
	require.ErrorIs(t, svc.Apply(context.Background(), "cs_test_1", mixed), ledgerdomain.ErrMixedUsers)
}
