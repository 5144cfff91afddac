package fulfillment

import (
	"github.com/smallbiznis/giftpact/internal/fulfillment/service"
	"github.com/smallbiznis/giftpact/internal/fulfillment/worker"
	"go.uber.org/fx"
)

var Module = fx.Module("fulfillment.service",
	fx.Provide(
		service.NewService,
		worker.NewWorker,
	),
)
