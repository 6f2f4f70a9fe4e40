package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corehub/sdk/internal/rules"
	"github.com/corehub/sdk/internal/rules/token"
	"github.com/corehub/sdk/internal/sharedstate"
	"github.com/corehub/sdk/internal/types"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Validate and render rule documents",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Parse a rule document and report any errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		doc, err := rules.Parse(data)
		if err != nil {
			return err
		}
		fmt.Printf("ok: version %d, %d rule(s)\n", doc.Version, len(doc.Rules))
		return nil
	},
}

var rulesRenderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Check that a rule document parses, then render a --template string against a sample event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eventJSON, _ := cmd.Flags().GetString("event")
		if eventJSON == "" {
			return fmt.Errorf("--event is required")
		}

		docBytes, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if _, err := rules.Parse(docBytes); err != nil {
			return err
		}

		var raw map[string]any
		if err := json.Unmarshal([]byte(eventJSON), &raw); err != nil {
			return fmt.Errorf("--event: %w", err)
		}
		eventData, ok := types.FromAny(raw).AsMap()
		if !ok {
			return fmt.Errorf("--event: expected a JSON object")
		}
		sample := types.NewEvent("hubctl sample event", types.EventTypeLifecycle, types.EventSourceRequestContent, eventData)
		finder := token.New(sample, noopStateReader{})

		tmpl, _ := cmd.Flags().GetString("template")
		if tmpl == "" {
			fmt.Println("nothing to render: pass --template '{% ~type %} ...'")
			return nil
		}
		fmt.Println(finder.Render(tmpl))
		return nil
	},
}

// noopStateReader backs ~state.* tokens with a permanent miss: hubctl
// renders templates against a sample event outside of any running hub, so
// there is no shared-state history to consult.
type noopStateReader struct{}

func (noopStateReader) SharedState(sharedstate.Namespace, string, uint64, sharedstate.Barrier) sharedstate.Result {
	return sharedstate.Result{Status: sharedstate.StatusNone}
}

func init() {
	rulesRenderCmd.Flags().String("event", "", "sample event data as a JSON object")
	rulesRenderCmd.Flags().String("template", "", "a {% path %} template to render against the sample event")
	rulesCmd.AddCommand(rulesValidateCmd, rulesRenderCmd)
}
