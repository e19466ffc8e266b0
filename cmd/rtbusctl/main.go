// Command rtbusctl runs an rtbus peer process and offers operator
// commands (status, peers, publish, config generation) against it.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	globalConfigPath string
	globalVerbose    bool
	globalLogger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rtbusctl",
	Short: "Run and operate an rtbus peer",
	Long: `rtbusctl runs an rtbus peer process on the local network and lets
you inspect it: which peers it has discovered and what they publish.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if globalVerbose {
			level = slog.LevelDebug
		}
		globalLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalConfigPath, "config", "", "path to config file (default: /etc/rtbus/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(peersCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(qrCmd)
	rootCmd.AddCommand(genconfigCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rtbusctl version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version)
	},
}

func resolvedConfigPath() string {
	if globalConfigPath != "" {
		return globalConfigPath
	}
	return configDefaultPath()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
