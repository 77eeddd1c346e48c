package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uschtwill/hiersnap/internal/storage"
	"github.com/uschtwill/hiersnap/internal/types"
)

var childrenCmd = &cobra.Command{
	Use:     "children <item-id>",
	GroupID: "query",
	Short:   "List the direct children of an item",
	Long: `List the latest-snapshot direct children of an item, in sibling order.

Examples:
  hx children epic:42#7
  hx children epic:42#7 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseItemID(args[0])
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		kids, err := store.GetChildren(cmd.Context(), id)
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(kids)
		}
		if len(kids) == 0 {
			fmt.Printf("No children for %s\n", id)
			return nil
		}
		for _, rec := range kids {
			printRecordLine(rec)
		}
		return nil
	},
}

func printRecordLine(rec *storage.Record) {
	marker := " "
	if rec.State.IsClosed() {
		marker = "x"
	}
	extra := ""
	if !rec.IsLeaf {
		extra = fmt.Sprintf(" (%d children, %d descendants)", rec.ChildCount, rec.DescendantCount)
	}
	fmt.Printf("[%s] %-14s %s%s\n", marker, rec.ID, rec.Title, extra)
}

func init() {
	rootCmd.AddCommand(childrenCmd)
}
