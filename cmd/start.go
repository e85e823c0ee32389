package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/polymev/flasharb/cmd/bot"
	"github.com/polymev/flasharb/config"
	"github.com/polymev/flasharb/utils"
)

var routersFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage engine",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVar(&routersFile, "routers", "", "exchange registry file (default is ./routers.yaml)")
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := utils.GetLogger()
	defer utils.CleanupLogger()

	if err := config.LoadEnv(); err != nil {
		logger.Debug("No .env file found", zap.Error(err))
	}
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	cfg.Logger = logger

	exchanges, err := loadRouters()
	if err != nil {
		return err
	}
	if exchanges != nil {
		cfg.Exchanges = exchanges
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bot.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	return b.Run(ctx)
}

// loadRouters reads the exchange registry. When no path is given and
// the default file does not exist, the built-in exchanges stand. A
// missing explicit path is an error.
func loadRouters() ([]config.ExchangeConfig, error) {
	path := routersFile
	explicit := path != ""
	if !explicit {
		path = "routers.yaml"
	}
	exchanges, err := config.LoadExchanges(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil, nil
		}
		return nil, err
	}
	return exchanges, nil
}
