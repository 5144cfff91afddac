package service

import (
	"math"
	"strconv"

	"github.com/smallbiznis/giftpact/internal/config"
	pricingdomain "github.com/smallbiznis/giftpact/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// Engine is the pure pricing component. A misconfigured engine is still
// constructed so the failure surfaces on use as a configuration error rather
// than a silently defaulted price of zero.
type Engine struct {
	log      *zap.Logger
	settings pricingdomain.Settings
	cfgErr   error
}

func NewEngine(p Params) pricingdomain.Service {
	engine := &Engine{log: p.Log.Named("pricing.engine")}
	engine.settings, engine.cfgErr = parseSettings(p.Cfg)
	if engine.cfgErr != nil {
		engine.log.Warn("pricing settings unavailable", zap.Error(engine.cfgErr))
	}
	return engine
}

func (e *Engine) Quote(costPrice int64) (pricingdomain.Quote, error) {
	if e.cfgErr != nil {
		return pricingdomain.Quote{}, e.cfgErr
	}
	if costPrice <= 0 {
		return pricingdomain.Quote{}, pricingdomain.ErrInvalidCostPrice
	}

	purchasePrice := roundCents(float64(costPrice) * (1 + e.settings.MarkupPercent/100))
	profit := purchasePrice - costPrice
	companyShare := roundCents(float64(profit) * e.settings.CompanySplitPercent / 100)
	// The rounding cent lands on the charity side so the split always
	// reconciles to the profit exactly.
	charityShare := profit - companyShare
	creditsEarned := int64(math.Floor(float64(charityShare) / 100 * e.settings.CreditsMultiplier))

	return pricingdomain.Quote{
		PurchasePrice: purchasePrice,
		Profit:        profit,
		CompanyShare:  companyShare,
		CharityShare:  charityShare,
		CreditsEarned: creditsEarned,
	}, nil
}

func parseSettings(cfg config.Config) (pricingdomain.Settings, error) {
	markup, err := parsePercent(cfg.MarkupPercent)
	if err != nil {
		return pricingdomain.Settings{}, err
	}
	companySplit, err := parsePercent(cfg.CompanySplitPercent)
	if err != nil {
		return pricingdomain.Settings{}, err
	}
	charitySplit, err := parsePercent(cfg.CharitySplitPercent)
	if err != nil {
		return pricingdomain.Settings{}, err
	}
	multiplier, err := parsePercent(cfg.CreditsMultiplier)
	if err != nil {
		return pricingdomain.Settings{}, err
	}

	if math.Abs(companySplit+charitySplit-100) > 1e-9 {
		return pricingdomain.Settings{}, pricingdomain.ErrInvalidSplit
	}

	return pricingdomain.Settings{
		MarkupPercent:       markup,
		CompanySplitPercent: companySplit,
		CharitySplitPercent: charitySplit,
		CreditsMultiplier:   multiplier,
	}, nil
}

func parsePercent(raw string) (float64, error) {
	if raw == "" {
		return 0, pricingdomain.ErrNotConfigured
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return 0, pricingdomain.ErrNotConfigured
	}
	return value, nil
}

func roundCents(value float64) int64 {
	return int64(math.Round(value))
}
