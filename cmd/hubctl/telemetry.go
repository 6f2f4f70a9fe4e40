package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corehub/sdk/internal/telemetry"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Inspect telemetry exporter configuration",
}

var telemetryCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Build the configured exporter pipeline and report whether it initializes cleanly",
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, _ := cmd.Flags().GetString("sink")
		endpoint, _ := cmd.Flags().GetString("otlp-endpoint")

		cfg, err := telemetry.NewConfig(context.Background(), "hubctl", telemetry.Sink(sink), endpoint)
		if err != nil {
			return err
		}
		hub, err := telemetry.New(cfg)
		if err != nil {
			return err
		}
		defer hub.Shutdown(context.Background())

		fmt.Printf("telemetry sink %q initialized\n", sink)
		return nil
	},
}

func init() {
	telemetryCheckCmd.Flags().String("sink", "stdout", "exporter destination: none, stdout, or otlp")
	telemetryCheckCmd.Flags().String("otlp-endpoint", "", "OTLP collector endpoint, required when --sink=otlp")
	telemetryCmd.AddCommand(telemetryCheckCmd)
}
