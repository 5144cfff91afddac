package pricing

import (
	"github.com/smallbiznis/giftpact/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.engine",
	fx.Provide(service.NewEngine),
)
