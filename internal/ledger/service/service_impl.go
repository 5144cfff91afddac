package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	charitydomain "github.com/smallbiznis/giftpact/internal/charity/domain"
	checkoutdomain "github.com/smallbiznis/giftpact/internal/checkout/domain"
	"github.com/smallbiznis/giftpact/internal/config"
	ledgerdomain "github.com/smallbiznis/giftpact/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/giftpact/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Prefs      charitydomain.Repository
	Cfg        config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	prefs        charitydomain.Repository
	defaultCause string
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("ledger.service"),
		genID:        p.GenID,
		prefs:        p.Prefs,
		defaultCause: p.Cfg.DefaultCause,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) Apply(ctx context.Context, sessionID string, batch []ledgerdomain.SettledPurchase) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ledgerdomain.ErrInvalidSession
	}
	if len(batch) == 0 {
		return ledgerdomain.ErrInvalidBatch
	}

	userID := batch[0].UserID
	var batchCredits, batchCharity int64
	for _, purchase := range batch {
		if purchase.UserID != userID {
			return ledgerdomain.ErrMixedUsers
		}
		batchCredits += purchase.CreditsEarned
		batchCharity += purchase.CharityShare
	}

	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		// Constraint-enforced idempotency: the application log insert is the
		// gate. A loser of a duplicate-delivery race sees zero rows affected
		// and skips the whole batch.
		result := tx.WithContext(ctx).Exec(
			`INSERT INTO ledger_applications (session_id, user_id, credits, charity_amount, applied_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (session_id) DO NOTHING`,
			sessionID,
			userID,
			batchCredits,
			batchCharity,
			now,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		applied = true

		// Atomic delta so concurrent sessions for the same user commute.
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO credit_accounts (user_id, balance, lifetime_earned, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (user_id) DO UPDATE SET
				balance = credit_accounts.balance + excluded.balance,
				lifetime_earned = credit_accounts.lifetime_earned + excluded.lifetime_earned,
				updated_at = excluded.updated_at`,
			userID,
			batchCredits,
			batchCredits,
			now,
			now,
		).Error; err != nil {
			return err
		}

		causes, err := s.activeCauses(ctx, tx, userID)
		if err != nil {
			return err
		}
		for i, amount := range splitEvenly(batchCharity, len(causes)) {
			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO charity_contributions (id, user_id, cause_slug, amount, session_id, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)
				 ON CONFLICT (session_id, cause_slug) DO NOTHING`,
				s.genID.Generate(),
				userID,
				causes[i],
				amount,
				sessionID,
				now,
			).Error; err != nil {
				return err
			}
		}

		for _, purchase := range batch {
			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO purchase_history (
					id, user_id, purchase_id, product_name, purchase_amount,
					profit_amount, charity_share, credits_earned, gift_card_code,
					recipient_email, purchase_date
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', '', ?)
				ON CONFLICT (purchase_id) DO NOTHING`,
				s.genID.Generate(),
				purchase.UserID,
				purchase.ID,
				purchase.ProductName,
				purchase.PurchasePrice,
				purchase.ProfitAmount,
				purchase.CharityShare,
				purchase.CreditsEarned,
				purchase.CompletedAt,
			).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		s.obsMetrics.RecordLedgerApplication("error")
		return err
	}

	if applied {
		s.obsMetrics.RecordLedgerApplication("applied")
		s.log.Info("ledger batch applied",
			zap.String("session_id", sessionID),
			zap.String("user_id", userID),
			zap.Int64("credits", batchCredits),
			zap.Int64("charity_amount", batchCharity),
		)
	} else {
		s.obsMetrics.RecordLedgerApplication("skipped")
	}
	return nil
}

// ReapplyPending picks up sessions whose purchases completed but whose
// application failed after the webhook was acknowledged. The session-keyed
// insert gate in Apply makes the sweep safe to run at any time.
func (s *Service) ReapplyPending(ctx context.Context) (int, error) {
	var purchases []checkoutdomain.Purchase
	err := s.db.WithContext(ctx).
		Where("status = ? AND session_id <> '' AND session_id NOT IN (SELECT session_id FROM ledger_applications)",
			checkoutdomain.PurchaseStatusCompleted).
		Order("id ASC").
		Find(&purchases).Error
	if err != nil {
		return 0, err
	}

	sessions := make([]string, 0)
	batches := make(map[string][]ledgerdomain.SettledPurchase)
	for _, purchase := range purchases {
		if _, seen := batches[purchase.SessionID]; !seen {
			sessions = append(sessions, purchase.SessionID)
		}
		completedAt := purchase.CreatedAt
		if purchase.CompletedAt != nil {
			completedAt = *purchase.CompletedAt
		}
		batches[purchase.SessionID] = append(batches[purchase.SessionID], ledgerdomain.SettledPurchase{
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

	applied := 0
	for _, sessionID := range sessions {
		if err := s.Apply(ctx, sessionID, batches[sessionID]); err != nil {
			s.log.Error("ledger reapplication failed",
				zap.Error(err),
				zap.String("session_id", sessionID),
			)
			continue
		}
		applied++
		s.log.Info("ledger batch reapplied", zap.String("session_id", sessionID))
	}
	return applied, nil
}

func (s *Service) activeCauses(ctx context.Context, tx *gorm.DB, userID string) ([]string, error) {
	prefs, err := s.prefs.ListActive(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if len(prefs) == 0 {
		return []string{s.defaultCause}, nil
	}
	causes := make([]string, 0, len(prefs))
	for _, pref := range prefs {
		causes = append(causes, pref.CauseSlug)
	}
	return causes, nil
}

// splitEvenly divides total across n recipients. Remainder cents go to the
// earliest recipients; nothing is dropped.
func splitEvenly(total int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	base := total / int64(n)
	remainder := total % int64(n)
	out := make([]int64, n)
	for i := range out {
		out[i] = base
		if int64(i) < remainder {
			out[i]++
		}
	}
	return out
}
