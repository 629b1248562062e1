package main

import (
	"fmt"
	"os"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/internal/presentation/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "weft is the editing core of a workflow canvas",
	Long: `weft loads workflow documents, runs them against an execution engine
and keeps the resulting execution records.`,
	Run: func(cmd *cobra.Command, args []string) {
		if tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout, weft.Version)
		}
		_ = cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	addGlobalFlags(rootCmd.PersistentFlags())
}

func addGlobalFlags(pf *pflag.FlagSet) {
	pf.String("config", config.DefaultPath, "Config file (YAML or JSON)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.String("store", "", "Record store: memory, file or redis")
	pf.String("store-path", "", "Directory of the file record store")
	pf.String("redis-addr", "", "Address of the redis record store")
	pf.String("engine-url", "", "Engine URL, may contain {workflow}")
	pf.String("transport", "", "Engine transport: websocket or socketio")
	pf.String("templates-dir", "", "Directory of sub-graph templates")
}

// loadConfig reads the config file and applies the flags set on the command line.
// The file is only required when --config is given explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path, flags.Changed("config"))
	if err != nil {
		return cfg, err
	}

	overrides := map[string]*string{
		"log-level":     &cfg.LogLevel,
		"log-format":    &cfg.LogFormat,
		"store":         &cfg.Store.Kind,
		"store-path":    &cfg.Store.Path,
		"redis-addr":    &cfg.Store.RedisAddr,
		"engine-url":    &cfg.Engine.URL,
		"transport":     &cfg.Engine.Transport,
		"templates-dir": &cfg.TemplatesDir,
	}
	for name, dst := range overrides {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	return cfg, cfg.Validate()
}

// exitOnError prints err and exits when it is not nil.
func exitOnError(msg string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
