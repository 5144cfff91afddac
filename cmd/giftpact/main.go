package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/giftpact/internal/cache"
	"github.com/smallbiznis/giftpact/internal/catalog"
	"github.com/smallbiznis/giftpact/internal/charity"
	"github.com/smallbiznis/giftpact/internal/checkout"
	"github.com/smallbiznis/giftpact/internal/config"
	"github.com/smallbiznis/giftpact/internal/fulfillment"
	"github.com/smallbiznis/giftpact/internal/ledger"
	"github.com/smallbiznis/giftpact/internal/migration"
	obsmetrics "github.com/smallbiznis/giftpact/internal/observability/metrics"
	"github.com/smallbiznis/giftpact/internal/payment"
	"github.com/smallbiznis/giftpact/internal/pricing"
	"github.com/smallbiznis/giftpact/internal/server"
	"github.com/smallbiznis/giftpact/pkg/db"
	"github.com/smallbiznis/giftpact/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		cache.Module,
		obsmetrics.Module,
		migration.Module,

		// Functional domains
		catalog.Module,
		pricing.Module,
		charity.Module,
		checkout.Module,
		ledger.Module,
		payment.Module,
		fulfillment.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
