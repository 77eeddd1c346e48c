package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uschtwill/hiersnap/internal/config"
	"github.com/uschtwill/hiersnap/internal/storage/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "hx",
	Short: "GitLab hierarchy snapshot tool",
	Long: `hx extracts an epic/issue hierarchy from GitLab and materializes
it into a local SQLite database as dated, versioned snapshots.

Configuration is read from .hiersnap/config.yaml (discovered by walking
up from the current directory), ~/.config/hx/config.yaml, or
~/.hiersnap/config.yaml. Environment variables prefixed with HX_
override the file, and flags override everything.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		// Flags beat config file and environment.
		if cmd.Flags().Changed("db") {
			db, _ := cmd.Flags().GetString("db")
			config.Set("db", db)
		}
		if cmd.Flags().Changed("json") {
			j, _ := cmd.Flags().GetBool("json")
			config.Set("json", j)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "path to the snapshot database (default hierarchy.db)")
	rootCmd.PersistentFlags().Bool("json", false, "emit JSON output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "extract", Title: "Extraction Commands:"},
		&cobra.Group{ID: "query", Title: "Query Commands:"},
		&cobra.Group{ID: "admin", Title: "Maintenance Commands:"},
	)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the configured snapshot database.
func openStore(ctx context.Context) (*sqlite.Store, error) {
	return sqlite.New(ctx, config.GetString("db"))
}

// jsonOutput reports whether --json (or HX_JSON / config) is in effect.
func jsonOutput() bool {
	return config.GetBool("json")
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// warn prints a non-fatal warning to stderr.
func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
