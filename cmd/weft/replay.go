package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/presentation/tui"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/editor"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <doc> <events.jsonl>",
	Short: "Reconcile a recorded engine event stream",
	Long: `Runs the document against a file of engine events, one JSON object per
line, instead of a live engine. Prints the log as it is reconciled and a
summary of the resulting execution record.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		exitOnError("Error loading config", err)
		logger, err := cfg.Logger()
		exitOnError("Error configuring logger", err)

		doc, err := weft.ReadDocument(args[0], cfg.Registry())
		exitOnError("Error reading workflow", err)
		events, err := os.Open(args[1])
		exitOnError("Error opening events", err)
		defer events.Close()

		opts, err := cfg.SessionOptions(logger)
		exitOnError("Error configuring session", err)

		asJSON, _ := cmd.Flags().GetBool("json")
		if !asJSON {
			opts = append(opts, editor.WithSink(tui.NewConsole(os.Stdout, tui.Profile(os.Stdout))))
		}
		if save, _ := cmd.Flags().GetBool("save"); save {
			recs, err := cfg.Records(logger)
			exitOnError("Error opening record store", err)
			opts = append(opts, editor.WithRecords(recs))
		}

		rec, err := weft.Replay(context.Background(), weft.WorkflowID(args[0]), doc, events, opts...)
		exitOnError("Replay failed", err)
		exitOnError("Error printing record", printRecord(rec, asJSON))
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Bool("json", false, "Print the execution record as JSON")
	replayCmd.Flags().Bool("save", false, "Persist the execution record in the configured store")
}

// printRecord writes rec to stdout as JSON or as a rendered summary.
func printRecord(rec *domain.ExecutionRecord, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	render, err := tui.NewRenderer(tui.IsTerminal(os.Stdout), 100)
	if err != nil {
		return err
	}
	out, err := render(tui.RunSummary(rec))
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
