package migration

import (
	charitydomain "github.com/smallbiznis/giftpact/internal/charity/domain"
	checkoutdomain "github.com/smallbiznis/giftpact/internal/checkout/domain"
	ledgerdomain "github.com/smallbiznis/giftpact/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/giftpact/internal/payment/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module runs schema migration on startup.
var Module = fx.Invoke(Migrate)

// Migrate creates or updates the settlement schema. The unique indexes on
// payment_events, charity_contributions and purchase_history are load-bearing:
// the pipeline's idempotency guarantees sit on them.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&checkoutdomain.Purchase{},
		&checkoutdomain.Session{},
		&paymentdomain.EventRecord{},
		&ledgerdomain.CreditAccount{},
		&ledgerdomain.Application{},
		&ledgerdomain.Contribution{},
		&ledgerdomain.HistoryRow{},
		&charitydomain.Preference{},
	)
}
