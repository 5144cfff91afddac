package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	charityrepository "github.com/smallbiznis/giftpact/internal/charity/repository"
	checkoutdomain "github.com/smallbiznis/giftpact/internal/checkout/domain"
	"github.com/smallbiznis/giftpact/internal/config"
	ledgerdomain "github.com/smallbiznis/giftpact/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/giftpact/internal/ledger/service"
	"github.com/smallbiznis/giftpact/internal/migration"
	paymentdomain "github.com/smallbiznis/giftpact/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/giftpact/internal/payment/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type queueRecorder struct {
	sessions []string
}

func (q *queueRecorder) Enqueue(sessionID string) {
	q.sessions = append(q.sessions, sessionID)
}

type fixture struct {
	db     *gorm.DB
	svc    paymentdomain.Service
	ledger ledgerdomain.Service
	queue  *queueRecorder
	node   *snowflake.Node
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.Migrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Prefs: charityrepository.Provide(),
		Cfg:   config.Config{DefaultCause: "general-fund"},
	})

	queue := &queueRecorder{}
	svc := NewService(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   paymentrepository.Provide(),
		Ledger: ledger,
		Queue:  queue,
	})
	return &fixture{db: db, svc: svc, ledger: ledger, queue: queue, node: node}
}

func (f *fixture) seedSession(t *testing.T, sessionID string) []snowflake.ID {
	t.Helper()
	ids := make([]snowflake.ID, 0, 2)
	for i := 0; i < 2; i++ {
		purchase := checkoutdomain.Purchase{
			ID:                f.node.Generate(),
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
			Status:            checkoutdomain.PurchaseStatusPending,
			SessionID:         sessionID,
			FulfillmentStatus: checkoutdomain.FulfillmentStatusPending,
			RecipientEmail:    "buyer@example.com",
			CreatedAt:         time.Now().UTC(),
		}
		require.NoError(t, f.db.Create(&purchase).Error)
		ids = append(ids, purchase.ID)
	}
	require.NoError(t, f.db.Create(&checkoutdomain.Session{
		ID:          sessionID,
		UserID:      "user-1",
		PurchaseIDs: checkoutdomain.JoinPurchaseIDs(ids),
		AmountTotal: 18900,
		Status:      checkoutdomain.SessionStatusPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}).Error)
	return ids
}

func completedEvent(sessionID, eventID string, ids []snowflake.ID) paymentdomain.Event {
	return paymentdomain.Event{
		Provider:        "stripe",
		ProviderEventID: eventID,
		Type:            paymentdomain.EventCheckoutCompleted,
		SessionID:       sessionID,
		PaymentIntent:   "pi_test_1",
		PurchaseIDs:     checkoutdomain.JoinPurchaseIDs(ids),
		AmountTotal:     18900,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestProcessEventSettlesSession(t *testing.T) {
	f := setup(t)
	ids := f.seedSession(t, "cs_test_1")

	event := completedEvent("cs_test_1", "evt_1", ids)
	require.NoError(t, f.svc.ProcessEvent(context.Background(), event, []byte(`{}`)))

	var purchases []checkoutdomain.Purchase
	require.NoError(t, f.db.Where("session_id = ?", "cs_test_1").Find(&purchases).Error)
	require.Len(t, purchases, 2)
	for _, purchase := range purchases {
		require.Equal(t, checkoutdomain.PurchaseStatusCompleted, purchase.Status)
		require.Equal(t, "pi_test_1", purchase.PaymentRef)
		require.NotNil(t, purchase.CompletedAt)
	}

	var session checkoutdomain.Session
	require.NoError(t, f.db.First(&session, "id = ?", "cs_test_1").Error)
	require.Equal(t, checkoutdomain.SessionStatusCompleted, session.Status)

	var account ledgerdomain.CreditAccount
	require.NoError(t, f.db.First(&account, "user_id = ?", "user-1").Error)
	require.Equal(t, int64(44), account.Balance)

	var contribution ledgerdomain.Contribution
	require.NoError(t, f.db.First(&contribution, "session_id = ?", "cs_test_1").Error)
	require.Equal(t, "general-fund", contribution.CauseSlug)
	require.Equal(t, int64(450), contribution.Amount)

	require.Equal(t, []string{"cs_test_1"}, f.queue.sessions)

	var record paymentdomain.EventRecord
	require.NoError(t, f.db.First(&record, "provider_event_id = ?", "evt_1").Error)
	require.Equal(t, paymentdomain.EventStatusProcessed, record.Status)
}

func TestProcessEventRedeliveryIsRejected(t *testing.T) {
	f := setup(t)
	ids := f.seedSession(t, "cs_test_1")

	event := completedEvent("cs_test_1", "evt_1", ids)
	require.NoError(t, f.svc.ProcessEvent(context.Background(), event, []byte(`{}`)))

	err := f.svc.ProcessEvent(context.Background(), event, []byte(`{}`))
	require.ErrorIs(t, err, paymentdomain.ErrEventAlreadyProcessed)

	var account ledgerdomain.CreditAccount
	require.NoError(t, f.db.First(&account, "user_id = ?", "user-1").Error)
	require.Equal(t, int64(44), account.Balance)
	require.Len(t, f.queue.sessions, 1)
}

func TestProcessEventDistinctEventSameSessionSettlesOnce(t *testing.T) {
	f := setup(t)
	ids := f.seedSession(t, "cs_test_1")

	require.NoError(t, f.svc.ProcessEvent(context.Background(), completedEvent("cs_test_1", "evt_1", ids), []byte(`{}`)))
	require.NoError(t, f.svc.ProcessEvent(context.Background(), completedEvent("cs_test_1", "evt_2", ids), []byte(`{}`)))

	var account ledgerdomain.CreditAccount
	require.NoError(t, f.db.First(&account, "user_id = ?", "user-1").Error)
	require.Equal(t, int64(44), account.Balance)

	var applications int64
	require.NoError(t, f.db.Model(&ledgerdomain.Application{}).Count(&applications).Error)
	require.Equal(t, int64(1), applications)
}

func TestProcessEventExpiredMarksFailed(t *testing.T) {
	f := setup(t)
	ids := f.seedSession(t, "cs_test_1")

	event := completedEvent("cs_test_1", "evt_1", ids)
	event.Type = paymentdomain.EventCheckoutExpired
	require.NoError(t, f.svc.ProcessEvent(context.Background(), event, []byte(`{}`)))

	var purchases []checkoutdomain.Purchase
	require.NoError(t, f.db.Where("session_id = ?", "cs_test_1").Find(&purchases).Error)
	for _, purchase := range purchases {
		require.Equal(t, checkoutdomain.PurchaseStatusFailed, purchase.Status)
	}

	var session checkoutdomain.Session
	require.NoError(t, f.db.First(&session, "id = ?", "cs_test_1").Error)
	require.Equal(t, checkoutdomain.SessionStatusExpired, session.Status)

	var account ledgerdomain.CreditAccount
	err := f.db.First(&account, "user_id = ?", "user-1").Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.Empty(t, f.queue.sessions)
}

func TestProcessEventIgnoresUnknownTypes(t *testing.T) {
	f := setup(t)

	event := paymentdomain.Event{
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		Type:            "invoice.paid",
	}
	err := f.svc.ProcessEvent(context.Background(), event, []byte(`{}`))
	require.ErrorIs(t, err, paymentdomain.ErrEventIgnored)

	var events int64
	require.NoError(t, f.db.Model(&paymentdomain.EventRecord{}).Count(&events).Error)
	require.Equal(t, int64(0), events)
}

type flakyLedger struct {
	ledgerdomain.Service
	fail bool
}

func (l *flakyLedger) Apply(ctx context.Context, sessionID string, batch []ledgerdomain.SettledPurchase) error {
	if l.fail {
		l.fail = false
		return errors.New("connection reset by peer")
	}
	return l.Service.Apply(ctx, sessionID, batch)
}

func TestLedgerFailureAfterSettlementIsRecoveredBySweep(t *testing.T) {
	f := setup(t)
	ids := f.seedSession(t, "cs_test_1")

	flaky := &flakyLedger{Service: f.ledger, fail: true}
	svc := NewService(Params{
		DB:     f.db,
		Log:    zap.NewNop(),
		GenID:  f.node,
		Repo:   paymentrepository.Provide(),
		Ledger: flaky,
		Queue:  f.queue,
	})

	// The webhook still succeeds: completion is authoritative once the
	// purchases are marked.
	require.NoError(t, svc.ProcessEvent(context.Background(), completedEvent("cs_test_1", "evt_1", ids), []byte(`{}`)))

	var record paymentdomain.EventRecord
	require.NoError(t, f.db.First(&record, "provider_event_id = ?", "evt_1").Error)
	require.Equal(t, paymentdomain.EventStatusProcessed, record.Status)

	var account ledgerdomain.CreditAccount
	require.ErrorIs(t, f.db.First(&account, "user_id = ?", "user-1").Error, gorm.ErrRecordNotFound)

	// Redelivery cannot recover it; the event gate rejects the replay.
	err := svc.ProcessEvent(context.Background(), completedEvent("cs_test_1", "evt_1", ids), []byte(`{}`))
	require.ErrorIs(t, err, paymentdomain.ErrEventAlreadyProcessed)

	applied, err := f.ledger.ReapplyPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, applied)

	require.NoError(t, f.db.First(&account, "user_id = ?", "user-1").Error)
	require.Equal(t, int64(44), account.Balance)

	var contribution ledgerdomain.Contribution
	require.NoError(t, f.db.First(&contribution, "session_id = ?", "cs_test_1").Error)
	require.Equal(t, int64(450), contribution.Amount)

	applied, err = f.ledger.ReapplyPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, applied)
}

func TestProcessEventFailureWithoutReferencesWarns(t *testing.T) {
	f := setup(t)

	core, logs := observer.New(zap.WarnLevel)
	svc := NewService(Params{
		DB:     f.db,
		Log:    zap.New(core),
		GenID:  f.node,
		Repo:   paymentrepository.Provide(),
		Ledger: f.ledger,
		Queue:  f.queue,
	})

	event := paymentdomain.Event{
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		Type:            paymentdomain.EventPaymentFailed,
		PaymentIntent:   "pi_test_1",
	}
	require.NoError(t, svc.ProcessEvent(context.Background(), event, []byte(`{}`)))

	entries := logs.FilterMessage("failure event resolved no purchases").All()
	require.Len(t, entries, 1)
	require.Equal(t, "pi_test_1", entries[0].ContextMap()["payment_intent"])

	var record paymentdomain.EventRecord
	require.NoError(t, f.db.First(&record, "provider_event_id = ?", "evt_1").Error)
	require.Equal(t, paymentdomain.EventStatusProcessed, record.Status)
}

func TestProcessEventFallsBackToStoredSession(t *testing.T) {
	f := setup(t)
	f.seedSession(t, "cs_test_1")

	event := completedEvent("cs_test_1", "evt_1", nil)
	event.PurchaseIDs = ""
	require.NoError(t, f.svc.ProcessEvent(context.Background(), event, []byte(`{}`)))

	var completed int64
	require.NoError(t, f.db.Model(&checkoutdomain.Purchase{}).
		Where("status = ?", checkoutdomain.PurchaseStatusCompleted).
		Count(&completed).Error)
	require.Equal(t, int64(2), completed)
}
