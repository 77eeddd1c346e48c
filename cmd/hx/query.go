package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:     "query <sql>",
	GroupID: "query",
	Short:   "Run a read-only SQL query against the snapshot database",
	Long: `Run a read-only SQL query against the snapshot database and print the
rows. Only SELECT statements are accepted.

The main table is "hierarchy"; run summaries live in "runs".

Examples:
  hx query "SELECT id, title FROM hierarchy WHERE is_latest = 1 AND is_overdue = 1"
  hx query "SELECT snapshot_date, COUNT(*) FROM hierarchy GROUP BY snapshot_date"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		rows, err := store.Query(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(rows)
		}
		for _, row := range rows {
			fmt.Printf("%v\n", row)
		}
		fmt.Printf("(%d rows)\n", len(rows))
		return nil
	},
}

var snapshotsCmd = &cobra.Command{
	Use:     "snapshots",
	GroupID: "query",
	Short:   "List stored snapshot dates",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		dates, err := store.ListSnapshots(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(dates)
		}
		for _, d := range dates {
			fmt.Println(d)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
