package cmd

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/spf13/cobra"

	"github.com/kerbaras/onepiece-offline/pkg/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the new chapter scheduler",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ctrl, log, err := newController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		if err := ctrl.Bootstrap(ctx); err != nil {
			return err
		}

		noScheduler, _ := cmd.Flags().GetBool("no-scheduler")
		if ctrl.Config.Scheduler.Enabled && !noScheduler {
			ctrl.Scheduler.Start()
		}

		srv := server.New(ctrl)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", srv.Addr)
		if err != nil {
			return errors.Wrap(err, "failed to bind")
		}
		graceful := signals.Setup()

		errc := make(chan error, 1)
		go func() {
			log.Info("server started", logger.Data{"addr": listener.Addr().String()})
			if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case <-graceful:
			log.Info("starting graceful shutdown")
		case err := <-errc:
			return errors.Wrap(err, "server stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Err(err).Error("server shutdown error")
		}
		log.Info("server shutdown")

		ctrl.Scheduler.Stop()
		log.Info("scheduler shutdown")
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("no-scheduler", false, "Do not poll for new chapters")
}
