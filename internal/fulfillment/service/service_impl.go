package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	catalogdomain "github.com/smallbiznis/giftpact/internal/catalog/domain"
	checkoutdomain "github.com/smallbiznis/giftpact/internal/checkout/domain"
	"github.com/smallbiznis/giftpact/internal/config"
	fulfillmentdomain "github.com/smallbiznis/giftpact/internal/fulfillment/domain"
	obsmetrics "github.com/smallbiznis/giftpact/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Catalog    catalogdomain.Service
	Cfg        config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	catalog     catalogdomain.Service
	maxAttempts int
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) fulfillmentdomain.Service {
	maxAttempts := p.Cfg.FulfillmentMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("fulfillment.service"),
		catalog:     p.Catalog,
		maxAttempts: maxAttempts,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) ProcessSession(ctx context.Context, sessionID string) (fulfillmentdomain.BatchResult, error) {
	var purchases []checkoutdomain.Purchase
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND status = ? AND fulfillment_status = ?",
			sessionID,
			checkoutdomain.PurchaseStatusCompleted,
			checkoutdomain.FulfillmentStatusPending,
		).
		Order("id ASC").
		Find(&purchases).Error
	if err != nil {
		return fulfillmentdomain.BatchResult{}, err
	}
	return s.process(ctx, purchases), nil
}

func (s *Service) ProcessPending(ctx context.Context) (fulfillmentdomain.BatchResult, error) {
	var purchases []checkoutdomain.Purchase
	err := s.db.WithContext(ctx).
		Where("status = ? AND fulfillment_status = ?",
			checkoutdomain.PurchaseStatusCompleted,
			checkoutdomain.FulfillmentStatusPending,
		).
		Order("id ASC").
		Find(&purchases).Error
	if err != nil {
		return fulfillmentdomain.BatchResult{}, err
	}
	return s.process(ctx, purchases), nil
}

func (s *Service) process(ctx context.Context, purchases []checkoutdomain.Purchase) fulfillmentdomain.BatchResult {
	var result fulfillmentdomain.BatchResult
	for i := range purchases {
		purchase := &purchases[i]

		if purchase.RecipientEmail == "" {
			// Nothing to deliver to. Retrying cannot fix this, so fail the
			// row terminally instead of burning attempts.
			s.failTerminal(ctx, purchase, fulfillmentdomain.ErrMissingRecipient.Error())
			result.Failed++
			continue
		}
		if purchase.FulfillmentAttempts >= s.maxAttempts {
			s.failTerminal(ctx, purchase, fulfillmentdomain.ErrAttemptsExceeded.Error())
			result.Failed++
			continue
		}

		order, err := s.catalog.PlaceOrder(ctx, catalogdomain.OrderRequest{
			ProductID:        purchase.ProductID,
			Quantity:         1,
			UnitPrice:        purchase.FaceAmount,
			RecipientEmail:   purchase.RecipientEmail,
			CustomIdentifier: uuid.NewString(),
		})
		if err != nil {
			s.recordAttempt(ctx, purchase, err)
			if purchase.FulfillmentAttempts+1 >= s.maxAttempts {
				s.failTerminal(ctx, purchase, fulfillmentdomain.ErrAttemptsExceeded.Error())
				result.Failed++
			} else {
				s.obsMetrics.RecordFulfillment("retry")
				result.Retryable++
			}
			continue
		}

		if err := s.markFulfilled(ctx, purchase, order.Code); err != nil {
			s.log.Error("persist fulfillment", zap.Error(err), zap.Int64("purchase_id", int64(purchase.ID)))
			result.Retryable++
			continue
		}
		s.obsMetrics.RecordFulfillment("fulfilled")
		result.Fulfilled++
	}
	return result
}

func (s *Service) recordAttempt(ctx context.Context, purchase *checkoutdomain.Purchase, cause error) {
	s.log.Warn("issuance attempt failed",
		zap.Error(cause),
		zap.Int64("purchase_id", int64(purchase.ID)),
		zap.Int("attempts", purchase.FulfillmentAttempts+1),
	)
	err := s.db.WithContext(ctx).Exec(
		`UPDATE purchases
		 SET fulfillment_attempts = fulfillment_attempts + 1, fulfillment_error = ?
		 WHERE id = ?`,
		cause.Error(),
		purchase.ID,
	).Error
	if err != nil {
		s.log.Error("record fulfillment attempt", zap.Error(err), zap.Int64("purchase_id", int64(purchase.ID)))
	}
}

func (s *Service) failTerminal(ctx context.Context, purchase *checkoutdomain.Purchase, reason string) {
	s.obsMetrics.RecordFulfillment("failed")
	err := s.db.WithContext(ctx).Exec(
		`UPDATE purchases
		 SET fulfillment_status = ?, fulfillment_error = ?
		 WHERE id = ? AND fulfillment_status = ?`,
		checkoutdomain.FulfillmentStatusFailed,
		reason,
		purchase.ID,
		checkoutdomain.FulfillmentStatusPending,
	).Error
	if err != nil {
		s.log.Error("mark fulfillment failed", zap.Error(err), zap.Int64("purchase_id", int64(purchase.ID)))
	}
}

func (s *Service) markFulfilled(ctx context.Context, purchase *checkoutdomain.Purchase, code string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.WithContext(ctx).Exec(
			`UPDATE purchases
			 SET fulfillment_status = ?, gift_card_code = ?, fulfilled_at = ?, fulfillment_error = ''
			 WHERE id = ? AND fulfillment_status = ?`,
			checkoutdomain.FulfillmentStatusFulfilled,
			code,
			now,
			purchase.ID,
			checkoutdomain.FulfillmentStatusPending,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		return tx.WithContext(ctx).Exec(
			`UPDATE purchase_history SET gift_card_code = ?, recipient_email = ? WHERE purchase_id = ?`,
			code,
			purchase.RecipientEmail,
			purchase.ID,
		).Error
	})
}
