package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corehub/sdk/internal/dataqueue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or drain a persisted hit queue file",
}

var queueInspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print the count and the next few records of a persisted queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := dataqueue.Open(args[0])
		if err != nil {
			return err
		}
		defer q.Close()

		n, err := q.Count()
		if err != nil {
			return err
		}
		fmt.Printf("%d record(s)\n", n)

		limit, _ := cmd.Flags().GetInt("limit")
		records, err := q.PeekN(limit)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Printf("seq=%d id=%s ts=%d bytes=%d\n", r.Seq, r.UniqueID, r.Timestamp, len(r.Payload))
		}
		return nil
	},
}

var queueDrainCmd = &cobra.Command{
	Use:   "drain <file>",
	Short: "Remove every record from a persisted queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := dataqueue.Open(args[0])
		if err != nil {
			return err
		}
		defer q.Close()

		n, err := q.Count()
		if err != nil {
			return err
		}
		if err := q.Clear(); err != nil {
			return err
		}
		fmt.Printf("drained %d record(s)\n", n)
		return nil
	},
}

func init() {
	queueInspectCmd.Flags().Int("limit", 10, "maximum number of records to print")
	queueCmd.AddCommand(queueInspectCmd, queueDrainCmd)
}
