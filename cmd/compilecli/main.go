// Command compilecli is a thin cobra CLI wrapper around the same core
// the HTTP handler uses (spec §6's "provide a validated UserQuery;
// receive {sql, parameters, diagram}" contract), grounded in the
// teacher's own pkg/cli pattern of delegating to a shared service layer
// rather than reimplementing it.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"marketscreener/internal/compiler"
	"marketscreener/internal/config"
	"marketscreener/internal/httpapi"
	"marketscreener/internal/params"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var risky bool

	root := &cobra.Command{
		Use:           "screenerc",
		Short:         "Screener query compiler CLI",
		Long:          "Compile a declarative screener UserQuery JSON file into SQL, parameters, and a flow diagram.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a screener config YAML file (defaults to the built-in market-data config)")

	compileCmd := &cobra.Command{
		Use:   "compile <query.json>",
		Short: "Compile a UserQuery JSON file to SQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(args[0], configPath, risky)
		},
	}
	compileCmd.Flags().BoolVar(&risky, "risky", false, "enable the optimizer's risky simplification pass")
	root.AddCommand(compileCmd)

	return root
}

func runCompile(path, configPath string, risky bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read query file: %w", err)
	}

	uq, err := httpapi.DecodeUserQueryFile(body)
	if err != nil {
		return fmt.Errorf("decode query: %w", err)
	}

	c := compiler.New(cfg)
	result, err := c.Compile(uq, compiler.Options{Risky: risky})
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	out := struct {
		SQL        string               `json:"sql"`
		Parameters params.OrderedValues `json:"parameters"`
		Diagram    string               `json:"diagram"`
	}{
		SQL:        result.SQL,
		Parameters: result.Ordered,
		Diagram:    result.Diagram,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}
