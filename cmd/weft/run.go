package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/presentation/tui"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/editor"
	"github.com/spf13/cobra"
)

// pauseTimeout bounds the wait for the event pump after an interrupt.
const pauseTimeout = 5 * time.Second

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <doc>",
	Short: "Run a workflow on the configured engine",
	Long: `Opens the document, sends it to the execution engine and follows the
event stream until the run ends. An interrupt pauses the run; nodes still
running are marked as warnings and the record is partial.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		exitOnError("Error loading config", err)
		logger, err := cfg.Logger()
		exitOnError("Error configuring logger", err)

		dialer, err := cfg.Dialer(logger)
		exitOnError("Error configuring engine", err)
		recs, err := cfg.Records(logger)
		exitOnError("Error opening record store", err)
		opts, err := cfg.SessionOptions(logger)
		exitOnError("Error configuring session", err)

		asJSON, _ := cmd.Flags().GetBool("json")
		opts = append(opts, editor.WithDialer(dialer), editor.WithRecords(recs))
		if !asJSON {
			opts = append(opts, editor.WithSink(tui.NewConsole(os.Stdout, tui.Profile(os.Stdout))))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := weft.Open(ctx, args[0], cfg.Registry(), opts...)
		exitOnError("Error opening workflow", err)
		defer s.Close()

		inputs, _ := cmd.Flags().GetStringToString("input")
		runInputs := make(map[string]any, len(inputs))
		for k, v := range inputs {
			runInputs[k] = v
		}

		runID, err := s.Run(ctx, runInputs)
		exitOnError("Error starting run", err)
		logger.Info("run started", "workflow_id", s.WorkflowID(), "run_id", runID)

		if err := s.WaitRun(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				exitOnError("Run failed", err)
			}
			fmt.Fprintln(os.Stderr, "\nInterrupted, pausing run...")
			if err := s.Pause(); err != nil && !errors.Is(err, domain.ErrNoActiveRun) {
				logger.Warn("pause failed", "error", err)
			}
			waitCtx, cancel := context.WithTimeout(context.Background(), pauseTimeout)
			defer cancel()
			if err := s.WaitRun(waitCtx); err != nil {
				logger.Warn("event stream did not close in time", "error", err)
			}
		}

		execs := s.Executions()
		if len(execs) == 0 {
			return
		}
		exitOnError("Error printing record", printRecord(execs[0], asJSON))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringToString("input", nil, "Run inputs as key=value pairs")
	runCmd.Flags().Bool("json", false, "Print the execution record as JSON")
}
