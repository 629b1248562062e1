package main

import (
	"context"
	"fmt"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/presentation/graph"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <doc>",
	Short: "Export the workflow as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart (graph LR) of the document. With --record,
node statuses from a stored execution record are drawn as styles.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		exitOnError("Error loading config", err)

		doc, err := weft.ReadDocument(args[0], cfg.Registry())
		exitOnError("Error reading workflow", err)
		g, err := doc.Graph(uuid.NewString)
		exitOnError("Error reading workflow", err)

		recordID, _ := cmd.Flags().GetString("record")
		if recordID != "" {
			logger, err := cfg.Logger()
			exitOnError("Error configuring logger", err)
			recs, err := cfg.Records(logger)
			exitOnError("Error opening record store", err)

			rec, err := recs.Load(context.Background(), weft.WorkflowID(args[0]), recordID)
			exitOnError("Error loading record", err)
			for _, view := range rec.Nodes {
				if n := g.Node(view.ID); n != nil {
					n.Status = view.Status
				}
			}
		}

		fmt.Print(graph.GenerateMermaid(g, recordID != ""))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("record", "", "Overlay the statuses of this execution record")
}
