// Package cmd defines the cogniflowd command-line interface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cogniflowd",
	Short: "Real-time cognitive state estimation from heart rate variability",
	Long: `cogniflowd ingests pulse-to-pulse intervals from a wearable sensor,
extracts HRV features over a sliding window, and serves continuous
stress, cognitive load, and fatigue estimates over HTTP, WebSocket,
and MQTT.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
