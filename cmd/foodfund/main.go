package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/clock"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/gateway/payos"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/logger"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/notify"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/observability"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/providers"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/ratelimit"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "foodfund",
		Short:         "FoodFund payment reconciliation and wallet ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(schedulerCmd())
	rootCmd.AddCommand(reapCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(hashKeyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// infrastructure is what every process needs before touching the database.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		logger.Module,
		telemetry.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

// domains wires the ledger, donation flow and their outbound integrations.
func domains() fx.Option {
	return fx.Options(
		notify.Module,
		ratelimit.Module,
		providers.Module,
		payos.Module,
		campaign.Module,
		wallet.Module,
		donation.Module,
	)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
