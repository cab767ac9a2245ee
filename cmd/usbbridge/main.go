//go:build linux

package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/DoraemonOS/android-system-core/pkg"
)

var rootCmd = &cobra.Command{
	Use:   "usbbridge",
	Short: "usbbridge drives debug-bridge devices over raw usbfs",
	Long: `Scans the usbfs bus tree for devices exposing a vendor-specific bulk
debug interface, opens and claims them, and keeps track of them as they
come and go. Useful for inspecting bridge transport behavior without a
full server running.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			pkg.SetLogLevel(slog.LevelDebug)
		} else {
			pkg.SetLogLevel(slog.LevelInfo)
		}
		if flagLogJSON {
			pkg.SetLogFormat(pkg.LogFormatJSON)
		}
	},
}

var (
	flagVerbose  bool
	flagLogJSON  bool
	flagBusRoot  string
	flagInterval time.Duration
)

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&flagBusRoot, "bus-root", "", "usbfs tree to enumerate (default /dev/bus/usb)")
	monitorCmd.Flags().DurationVar(&flagInterval, "interval", 0, "Pause between bus scans (default 1s)")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(monitorCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
