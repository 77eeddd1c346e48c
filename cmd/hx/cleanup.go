package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uschtwill/hiersnap/internal/config"
)

var cleanupCmd = &cobra.Command{
	Use:     "cleanup",
	GroupID: "admin",
	Short:   "Delete superseded snapshot rows past the retention window",
	Long: `Delete superseded snapshot rows whose date is older than the retention
window. Latest rows are never deleted, whatever their age.

Examples:
  hx cleanup
  hx cleanup --keep-days 30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keepDays, _ := cmd.Flags().GetInt("keep-days")
		if !cmd.Flags().Changed("keep-days") {
			keepDays = config.GetInt("snapshots.keep-days")
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		deleted, err := store.CleanupSnapshots(cmd.Context(), keepDays)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d superseded rows older than %d days\n", deleted, keepDays)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().Int("keep-days", 90, "retention window in days")
	rootCmd.AddCommand(cleanupCmd)
}
