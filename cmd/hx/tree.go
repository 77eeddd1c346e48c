package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uschtwill/hiersnap/internal/types"
)

var treeCmd = &cobra.Command{
	Use:     "tree <item-id>",
	GroupID: "query",
	Short:   "Print the subtree under an item",
	Long: `Print the latest-snapshot subtree rooted at an item, indented by depth.

Examples:
  hx tree epic:42#7
  hx tree epic:42#7 --json`,
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

		sub, err := store.GetSubtree(cmd.Context(), id)
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(sub)
		}
		baseDepth := sub[0].Depth
		for _, rec := range sub {
			marker := " "
			if rec.State.IsClosed() {
				marker = "x"
			}
			fmt.Printf("%s[%s] %s  %s\n",
				strings.Repeat("  ", rec.Depth-baseDepth), marker, rec.ID, rec.Title)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
