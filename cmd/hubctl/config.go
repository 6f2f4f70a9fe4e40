package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corehub/sdk/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or scaffold corehub configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write a starter configuration file (.yaml/.yml or .toml)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(args[0]); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", args[0])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration resolved from env and (optional) --file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		fmt.Printf("hitqueue.retryinterval = %s\n", cfg.HitQueueRetryInterval)
		fmt.Printf("hitqueue.batchlimit    = %d\n", cfg.HitQueueBatchLimit)
		fmt.Printf("rules.cachedir         = %s\n", cfg.RulesCacheDir)
		fmt.Printf("privacy.default        = %s\n", cfg.DefaultPrivacyStatus)
		return nil
	},
}

func init() {
	configShowCmd.Flags().String("file", "", "path to an explicit config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
