package main

import (
	"fmt"
	"os"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/pkg/document"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <doc>...",
	Short: "Check workflow documents",
	Long: `Parses each document and reports the first problem found: malformed
positions, dangling edges, duplicate ids, or extension data that does not
match the schemas declared in the config file.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		exitOnError("Error loading config", err)

		failed := 0
		for _, path := range args {
			doc, err := weft.ReadDocument(path, cfg.Registry())
			if err != nil {
				fmt.Printf("%v\n", err)
				failed++
				continue
			}
			if err := checkGraph(doc); err != nil {
				fmt.Printf("%s: %v\n", path, err)
				failed++
				continue
			}
			fmt.Printf("%s: valid (%d nodes, %d edges)\n", path, len(doc.Nodes), len(doc.Edges))
		}
		if failed > 0 {
			fmt.Printf("Validation failed for %d of %d documents\n", failed, len(args))
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func checkGraph(doc *document.Document) error {
	g, err := doc.Graph(uuid.NewString)
	if err != nil {
		return err
	}
	return g.Validate()
}
