package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/server"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a compile peer",
	Long: `serve starts a websocket compile peer. Binary frames are compiled as
WebAssembly modules with wazero and acknowledged with an Init response.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		peer := server.New(globalLogger)
		defer peer.Close(context.Background())

		srv := &http.Server{
			Addr:    serveListen,
			Handler: peer,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()
		globalLogger.Info("compile peer listening", zap.String("addr", serveListen))

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		globalLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8787", "listen address")
}
