package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/polymev/flasharb/utils"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "flasharb",
	Short: "A flash-loan arbitrage engine for Polygon",
	Long: `flasharb watches the mempool and new blocks for price skew between
configured exchanges, prices round-trip swap paths against locally
synced reserves, simulates the full flash-loan cycle, and submits
profitable bundles to a private relay.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	utils.InitLogger(debug)
}
