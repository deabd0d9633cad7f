package cmd

import (
	"os"

	"github.com/robinjoseph08/golib/logger"
	"github.com/spf13/cobra"

	"github.com/kerbaras/onepiece-offline/pkg/app"
	"github.com/kerbaras/onepiece-offline/pkg/config"
	"github.com/kerbaras/onepiece-offline/pkg/services"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "opoffline",
	Short:        "Download One Piece chapters for offline reading",
	Long:         "Download One Piece chapters as EPUB, CBZ or PDF, watch for new releases and serve them over HTTP",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, log, err := newController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		// Titles come from the catalog.
		if err := ctrl.Updates.Refresh(cmd.Context()); err != nil {
			log.Err(err).Warn("catalog unavailable")
		}
		return app.NewApp(ctrl).Run()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (defaults to $"+config.PathEnv+")")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(availableCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
}

func newController() (*services.Controller, logger.Logger, error) {
	log := logger.New()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, log, err
	}
	ctrl, err := services.NewController(cfg, log)
	return ctrl, log, err
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
