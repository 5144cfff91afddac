package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/giftpact/internal/checkout/domain"
	fulfillmentdomain "github.com/smallbiznis/giftpact/internal/fulfillment/domain"
	ledgerdomain "github.com/smallbiznis/giftpact/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/giftpact/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/giftpact/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       paymentdomain.Repository
	Ledger     ledgerdomain.Service
	Queue      fulfillmentdomain.Queue
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	ledger     ledgerdomain.Service
	queue      fulfillmentdomain.Queue
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		ledger:     p.Ledger,
		queue:      p.Queue,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) ProcessEvent(ctx context.Context, event paymentdomain.Event, payload []byte) error {
	switch event.Type {
	case paymentdomain.EventCheckoutCompleted,
		paymentdomain.EventCheckoutExpired,
		paymentdomain.EventPaymentFailed:
	default:
		s.obsMetrics.RecordWebhookEvent(event.Type, "ignored")
		return paymentdomain.ErrEventIgnored
	}

	record := &paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		SessionID:       event.SessionID,
		Payload:         payload,
		Status:          paymentdomain.EventStatusReceived,
		ReceivedAt:      time.Now().UTC(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return err
	}
	if !inserted {
		s.obsMetrics.RecordWebhookEvent(event.Type, "duplicate")
		return paymentdomain.ErrEventAlreadyProcessed
	}

	if event.Type == paymentdomain.EventCheckoutCompleted {
		err = s.settle(ctx, event)
	} else {
		err = s.markFailed(ctx, event)
	}
	if err != nil {
		s.obsMetrics.RecordWebhookEvent(event.Type, "error")
		if markErr := s.repo.MarkFailed(ctx, s.db, event.Provider, event.ProviderEventID, err.Error()); markErr != nil {
			s.log.Error("mark event failed", zap.Error(markErr), zap.String("event_id", event.ProviderEventID))
		}
		return err
	}

	s.obsMetrics.RecordWebhookEvent(event.Type, "processed")
	return s.repo.MarkProcessed(ctx, s.db, event.Provider, event.ProviderEventID)
}

// settle transitions the session's purchases to completed, then applies the
// ledger and queues fulfillment. Completion is authoritative: once purchases
// are marked completed, downstream errors are logged and retried out of band,
// never rolled back into a payment failure.
func (s *Service) settle(ctx context.Context, event paymentdomain.Event) error {
	purchaseIDs, err := s.resolvePurchaseIDs(ctx, event)
	if err != nil {
		return err
	}
	if len(purchaseIDs) == 0 {
		return paymentdomain.ErrInvalidPayload
	}

	now := time.Now().UTC()
	var settled []checkoutdomain.Purchase
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The status guard makes the transition one-shot. Replays and
		// already-settled rows match zero rows and change nothing.
		if err := tx.WithContext(ctx).Exec(
			`UPDATE purchases
			 SET status = ?, payment_ref = ?, session_id = ?, completed_at = ?
			 WHERE id IN ? AND status = ?`,
			checkoutdomain.PurchaseStatusCompleted,
			event.PaymentIntent,
			event.SessionID,
			now,
			purchaseIDs,
			checkoutdomain.PurchaseStatusPending,
		).Error; err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Exec(
			`UPDATE checkout_sessions SET status = ?, updated_at = ? WHERE id = ?`,
			checkoutdomain.SessionStatusCompleted,
			now,
			event.SessionID,
		).Error; err != nil {
			return err
		}

		return tx.WithContext(ctx).
			Where("id IN ? AND status = ?", purchaseIDs, checkoutdomain.PurchaseStatusCompleted).
			Find(&settled).Error
	})
	if err != nil {
		return err
	}
	if len(settled) == 0 {
		return paymentdomain.ErrInvalidPayload
	}

	batch := make([]ledgerdomain.SettledPurchase, 0, len(settled))
	for _, purchase := range settled {
		completedAt := now
		if purchase.CompletedAt != nil {
			completedAt = *purchase.CompletedAt
		}
		batch = append(batch, ledgerdomain.SettledPurchase{
			ID:            purchase.ID,
			UserID:        purchase.UserID,
			ProductName:   purchase.ProductName,
			PurchasePrice: purchase.PurchasePrice,
			ProfitAmount:  purchase.ProfitAmount,
			CharityShare:  purchase.CharityShare,
			CreditsEarned: purchase.CreditsEarned,
			CompletedAt:   completedAt,
		})
	}

	if err := s.ledger.Apply(ctx, event.SessionID, batch); err != nil {
		// The payment already settled. Surfacing this to the provider would
		// only trigger redeliveries that hit the duplicate gate, so log it
		// for the out-of-band sweep instead.
		s.log.Error("ledger application failed after settlement",
			zap.Error(err),
			zap.String("session_id", event.SessionID),
		)
	}

	s.queue.Enqueue(event.SessionID)

	s.log.Info("session settled",
		zap.String("session_id", event.SessionID),
		zap.String("event_id", event.ProviderEventID),
		zap.Int("purchases", len(settled)),
	)
	return nil
}

func (s *Service) markFailed(ctx context.Context, event paymentdomain.Event) error {
	purchaseIDs, err := s.resolvePurchaseIDs(ctx, event)
	if err != nil {
		return err
	}
	if len(purchaseIDs) == 0 {
		// Nothing to transition. Pending rows stay pending until the session
		// expires, so leave a trail for whoever has to find them.
		s.log.Warn("failure event resolved no purchases",
			zap.String("event_id", event.ProviderEventID),
			zap.String("event_type", event.Type),
			zap.String("session_id", event.SessionID),
			zap.String("payment_intent", event.PaymentIntent),
		)
	}

	sessionStatus := checkoutdomain.SessionStatusFailed
	if event.Type == paymentdomain.EventCheckoutExpired {
		sessionStatus = checkoutdomain.SessionStatusExpired
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(purchaseIDs) > 0 {
			if err := tx.WithContext(ctx).Exec(
				`UPDATE purchases SET status = ? WHERE id IN ? AND status = ?`,
				checkoutdomain.PurchaseStatusFailed,
				purchaseIDs,
				checkoutdomain.PurchaseStatusPending,
			).Error; err != nil {
				return err
			}
		}
		if event.SessionID == "" {
			return nil
		}
		return tx.WithContext(ctx).Exec(
			`UPDATE checkout_sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			sessionStatus,
			now,
			event.SessionID,
			checkoutdomain.SessionStatusPending,
		).Error
	})
}

// resolvePurchaseIDs prefers the ids echoed back through session metadata and
// falls back to the stored session row when the provider drops metadata.
func (s *Service) resolvePurchaseIDs(ctx context.Context, event paymentdomain.Event) ([]snowflake.ID, error) {
	raw := event.PurchaseIDs
	if raw == "" && event.SessionID != "" {
		var session checkoutdomain.Session
		err := s.db.WithContext(ctx).
			Where("id = ?", event.SessionID).
			First(&session).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, nil
			}
			return nil, err
		}
		raw = session.PurchaseIDs
	}
	if raw == "" {
		return nil, nil
	}
	ids, err := checkoutdomain.SplitPurchaseIDs(raw)
	if err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	return ids, nil
}
