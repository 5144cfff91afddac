package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/giftpact/internal/catalog/domain"
	checkoutdomain "github.com/smallbiznis/giftpact/internal/checkout/domain"
	obsmetrics "github.com/smallbiznis/giftpact/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/giftpact/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Catalog    catalogdomain.Service
	Pricing    pricingdomain.Service
	Provider   checkoutdomain.PaymentProvider
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	catalog    catalogdomain.Service
	pricing    pricingdomain.Service
	provider   checkoutdomain.PaymentProvider
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) checkoutdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("checkout.service"),
		genID:      p.GenID,
		catalog:    p.Catalog,
		pricing:    p.Pricing,
		provider:   p.Provider,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateSession(ctx context.Context, userID, email string, items []checkoutdomain.CartItem) (*checkoutdomain.SessionResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, checkoutdomain.ErrUnauthorized
	}
	if len(items) == 0 {
		return nil, checkoutdomain.ErrEmptyCart
	}

	// Price and validate the whole cart before any write. A single bad
	// denomination rejects the cart with zero rows inserted.
	now := time.Now().UTC()
	purchases := make([]checkoutdomain.Purchase, 0, len(items))
	lineItems := make([]checkoutdomain.LineItem, 0, len(items))
	var amountTotal int64

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, checkoutdomain.ErrInvalidQuantity
		}

		product, err := s.catalog.GetProductByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}

		costPrice, ok := product.CostPriceFor(item.Denomination)
		if !ok {
			s.log.Warn("denomination not in catalog set",
				zap.Int64("product_id", item.ProductID),
				zap.Int64("denomination", item.Denomination),
			)
			return nil, checkoutdomain.ErrInvalidDenomination
		}

		quote, err := s.pricing.Quote(costPrice)
		if err != nil {
			return nil, err
		}

		imageURL := ""
		if len(product.LogoURLs) > 0 {
			imageURL = product.LogoURLs[0]
		}
		lineItems = append(lineItems, checkoutdomain.LineItem{
			Name:        fmt.Sprintf("%s Gift Card", product.BrandName),
			Description: fmt.Sprintf("%s %.2f", product.RecipientCurrencyCode, float64(item.Denomination)/100),
			Currency:    "usd",
			UnitAmount:  quote.PurchasePrice,
			Quantity:    item.Quantity,
			ImageURL:    imageURL,
		})

		for i := 0; i < item.Quantity; i++ {
			purchases = append(purchases, checkoutdomain.Purchase{
				ID:                s.genID.Generate(),
				UserID:            userID,
				ProductID:         item.ProductID,
				ProductName:       product.ProductName,
				BrandName:         product.BrandName,
				FaceAmount:        item.Denomination,
				Currency:          product.RecipientCurrencyCode,
				PurchasePrice:     quote.PurchasePrice,
				CostPrice:         costPrice,
				ProfitAmount:      quote.Profit,
				CompanyShare:      quote.CompanyShare,
				CharityShare:      quote.CharityShare,
				CreditsEarned:     quote.CreditsEarned,
				Status:            checkoutdomain.PurchaseStatusPending,
				FulfillmentStatus: checkoutdomain.FulfillmentStatusPending,
				RecipientEmail:    strings.TrimSpace(email),
				CreatedAt:         now,
			})
			amountTotal += quote.PurchasePrice
		}
	}

	if err := s.db.WithContext(ctx).Create(&purchases).Error; err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(purchases))
	for _, purchase := range purchases {
		ids = append(ids, purchase.ID)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, checkoutdomain.CreateSessionRequest{
		UserID:      userID,
		PurchaseIDs: ids,
		LineItems:   lineItems,
	})
	if err != nil {
		// The pending rows cannot settle without a provider session; fail
		// them best effort and leave the rest to expiry.
		s.failPending(ctx, ids)
		return nil, err
	}

	if err := s.db.WithContext(ctx).Exec(
		`UPDATE purchases SET session_id = ? WHERE id IN ?`,
		session.ID,
		ids,
	).Error; err != nil {
		s.log.Error("failed to attach session to purchases", zap.String("session_id", session.ID), zap.Error(err))
	}

	record := checkoutdomain.Session{
		ID:          session.ID,
		UserID:      userID,
		PurchaseIDs: checkoutdomain.JoinPurchaseIDs(ids),
		AmountTotal: amountTotal,
		Status:      checkoutdomain.SessionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.log.Error("failed to record checkout session", zap.String("session_id", session.ID), zap.Error(err))
	}

	s.obsMetrics.RecordCheckoutSession()
	s.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.Int("purchases", len(ids)),
		zap.Int64("amount_total", amountTotal),
	)

	return &checkoutdomain.SessionResult{
		SessionID:   session.ID,
		RedirectURL: session.URL,
	}, nil
}

func (s *Service) failPending(ctx context.Context, ids []snowflake.ID) {
	if len(ids) == 0 {
		return
	}
	if err := s.db.WithContext(ctx).Exec(
		`UPDATE purchases SET status = ? WHERE id IN ? AND status = ?`,
		checkoutdomain.PurchaseStatusFailed,
		ids,
		checkoutdomain.PurchaseStatusPending,
	).Error; err != nil {
		s.log.Warn("failed to mark orphaned purchases failed", zap.Error(err))
	}
}
