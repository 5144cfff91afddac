package service_test

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/smallbiznis/giftpact/internal/config"
	pricingdomain "github.com/smallbiznis/giftpact/internal/pricing/domain"
	pricingservice "github.com/smallbiznis/giftpact/internal/pricing/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEngine(t *testing.T, markup, company, charity, multiplier string) pricingdomain.Service {
	t.Helper()
	return pricingservice.NewEngine(pricingservice.Params{
		Cfg: config.Config{
			MarkupPercent:       markup,
			CompanySplitPercent: company,
			CharitySplitPercent: charity,
			CreditsMultiplier:   multiplier,
		},
		Log: zap.NewNop(),
	})
}

func TestQuoteReferenceExample(t *testing.T) {
	// $90 cost at 5% markup, 50/50 split, 10x credits.
	engine := newEngine(t, "5", "50", "50", "10")

	quote, err := engine.Quote(9000)
	require.NoError(t, err)

	assert.Equal(t, int64(9450), quote.PurchasePrice)
	assert.Equal(t, int64(450), quote.Profit)
	assert.Equal(t, int64(225), quote.CompanyShare)
	assert.Equal(t, int64(225), quote.CharityShare)
	assert.Equal(t, int64(22), quote.CreditsEarned)
}

func TestQuoteSharesReconcileToProfit(t *testing.T) {
	cases := []struct {
		name    string
		markup  string
		company string
		charity string
		costs   []int64
	}{
		{"even split", "5", "50", "50", []int64{1, 33, 999, 2500, 9999, 123457}},
		{"uneven split", "7.5", "33", "67", []int64{1, 99, 101, 4999, 100003}},
		{"charity heavy", "10", "1", "99", []int64{3, 777, 65001}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newEngine(t, tc.markup, tc.company, tc.charity, "10")
			for _, cost := range tc.costs {
				quote, err := engine.Quote(cost)
				require.NoError(t, err)

				assert.Equal(t, quote.Profit, quote.PurchasePrice-cost)
				// Shares must reconcile to profit within one cent and the
				// rounding cent must appear exactly once.
				assert.Equal(t, quote.Profit, quote.CompanyShare+quote.CharityShare)
				assert.InDelta(t, float64(quote.Profit)*0.01*mustFloat(t, tc.company), float64(quote.CompanyShare), 1)

				expectedCredits := int64(math.Floor(float64(quote.CharityShare) / 100 * 10))
				assert.Equal(t, expectedCredits, quote.CreditsEarned)
			}
		})
	}
}

func TestQuoteMissingSettings(t *testing.T) {
	engine := newEngine(t, "", "50", "50", "10")

	_, err := engine.Quote(9000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pricingdomain.ErrNotConfigured))
}

func TestQuoteSplitMustSumToHundred(t *testing.T) {
	engine := newEngine(t, "5", "60", "50", "10")

	_, err := engine.Quote(9000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pricingdomain.ErrInvalidSplit))
}

func TestQuoteRejectsNonPositiveCost(t *testing.T) {
	engine := newEngine(t, "5", "50", "50", "10")

	_, err := engine.Quote(0)
	assert.True(t, errors.Is(err, pricingdomain.ErrInvalidCostPrice))

	_, err = engine.Quote(-100)
	assert.True(t, errors.Is(err, pricingdomain.ErrInvalidCostPrice))
}

func mustFloat(t *testing.T, raw string) float64 {
	t.Helper()
	value, err := strconv.ParseFloat(raw, 64)
	require.NoError(t, err)
	return value
}
