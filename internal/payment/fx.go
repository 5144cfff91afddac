package payment

import (
	"github.com/smallbiznis/giftpact/internal/payment/repository"
	"github.com/smallbiznis/giftpact/internal/payment/service"
	"github.com/smallbiznis/giftpact/internal/payment/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(
		repository.Provide,
		stripe.NewClient,
		service.NewService,
	),
)
