// Command bridge runs the wasm-bridge CLI: "serve" starts a compile peer,
// "compile" sends a module to one and waits synchronously for its
// acknowledgement.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/internal/config"
)

// Global flags shared across subcommands.
var (
	globalConfigPath string
	globalVerbose    bool
	globalLogger     *zap.Logger
	globalConfig     config.Config
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Synchronous bridge to a remote WebAssembly compile peer",
	Long: `bridge compiles WebAssembly modules through a remote compile peer
reached over a websocket. The compile call is synchronous: the reply
returns through a shared-memory round trip rather than the asynchronous
channel.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewDevelopmentConfig()
		if !globalVerbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		}
		logger, err := zapCfg.Build()
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		globalLogger = logger

		path := globalConfigPath
		if path == "" {
			path = config.DefaultPath()
		}
		globalConfig, err = config.Load(path)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalConfigPath, "config", "", "path to config file (default: per-user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(compileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
