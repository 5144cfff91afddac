package charity

import (
	"github.com/smallbiznis/giftpact/internal/charity/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("charity.preferences",
	fx.Provide(repository.Provide),
)
