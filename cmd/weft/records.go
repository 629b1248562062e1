package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/aretw0/weft/pkg/records"
	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect stored execution records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list <workflow>",
	Short: "List the execution records of a workflow, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		recs := openRecords(cmd)
		list, err := recs.List(context.Background(), args[0])
		exitOnError("Error listing records", err)
		if len(list) == 0 {
			fmt.Printf("No records for %s\n", args[0])
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRUN\tSTATUS\tSTARTED\tDURATION\tISSUES")
		for _, rec := range list {
			duration := "-"
			if rec.EndTime != nil {
				duration = (time.Duration(rec.DurationMs) * time.Millisecond).String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
				rec.ID, rec.RunID, rec.Status, rec.StartTime.Local().Format(time.DateTime), duration, rec.IssueCount)
		}
		_ = w.Flush()
	},
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <workflow> <record>",
	Short: "Print one execution record",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		recs := openRecords(cmd)
		rec, err := recs.Load(context.Background(), args[0], args[1])
		exitOnError("Error loading record", err)
		asJSON, _ := cmd.Flags().GetBool("json")
		exitOnError("Error printing record", printRecord(rec, asJSON))
	},
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <workflow> <record>...",
	Short: "Delete execution records",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		recs := openRecords(cmd)
		for _, id := range args[1:] {
			exitOnError("Error deleting record", recs.Delete(context.Background(), args[0], id))
			fmt.Printf("Deleted %s\n", id)
		}
	},
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd, recordsShowCmd, recordsDeleteCmd)
	recordsShowCmd.Flags().Bool("json", false, "Print the record as JSON")
}

func openRecords(cmd *cobra.Command) *records.Manager {
	cfg, err := loadConfig(cmd)
	exitOnError("Error loading config", err)
	logger, err := cfg.Logger()
	exitOnError("Error configuring logger", err)
	recs, err := cfg.Records(logger)
	exitOnError("Error opening record store", err)
	return recs
}
