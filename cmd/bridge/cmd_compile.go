package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/internal/config"
)

var (
	compileAddress string
	compileTimeout time.Duration
)

var compileCmd = &cobra.Command{
	Use:   "compile <module.wasm>",
	Short: "Compile a module through the configured peer",
	Long: `compile sends the module bytes to the compile peer as one blocking
round trip and waits synchronously for the Init acknowledgement.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wasm, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading module: %w", err)
		}

		addr := globalConfig.Socket.Address
		if compileAddress != "" {
			addr = compileAddress
		}
		timeout := time.Duration(globalConfig.Socket.BlockingTimeout)
		if cmd.Flags().Changed("timeout") {
			timeout = compileTimeout
		}

		wasmbridge.SetSocketAddress(addr)
		wasmbridge.SetDebug(globalConfig.Logging.Debug || globalVerbose)
		wasmbridge.SetBlockingTimeout(timeout)

		b := bridge.New(globalLogger)
		defer b.Close()

		handle, err := b.Compile(cmd.Context(), wasm)
		if err != nil {
			return err
		}
		defer handle.Close()

		globalLogger.Info("module compiled",
			zap.String("module", args[0]),
			zap.Int("bytes", len(wasm)),
			zap.String("peer", addr))
		return nil
	},
}

func init() {
	compileCmd.Flags().StringVar(&compileAddress, "address", "", "compile peer websocket address (overrides config)")
	compileCmd.Flags().DurationVar(&compileTimeout, "timeout", config.DefaultBlockingTimeout, "blocking round trip timeout (overrides config)")
}
