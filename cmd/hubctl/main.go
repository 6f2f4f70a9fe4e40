// Command hubctl is the operator CLI for a corehub deployment: validating
// and rendering rule documents, and inspecting or draining a persisted hit
// queue without starting a full Runtime. Grounded on the teacher's cobra
// root-command wiring (cmd/bd/main.go), scaled down to the handful of
// subcommands this SDK's surface actually needs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "hubctl",
	Short: "hubctl - operator CLI for a corehub deployment",
	Long:  `Inspect and drive a corehub SDK's rule documents and persisted hit queue from the command line.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("hubctl version %s\n", version)
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.Flags().Bool("version", false, "print hubctl's version and exit")
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(telemetryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
