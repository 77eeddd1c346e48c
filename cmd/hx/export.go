package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/uschtwill/hiersnap/internal/storage"
	"github.com/uschtwill/hiersnap/internal/types"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "query",
	Short:   "Export the latest snapshot to stdout",
	Long: `Export the latest snapshot rows to stdout as JSON or CSV.

With --root, only the subtree under that item is exported.

Examples:
  hx export > snapshot.json
  hx export --format csv > snapshot.csv
  hx export --root epic:42#7 --format csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format != "json" && format != "csv" {
			return fmt.Errorf("unknown format %q (want json or csv)", format)
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		var records []*storage.Record
		rootArg, _ := cmd.Flags().GetString("root")
		if rootArg != "" {
			id, err := types.ParseItemID(rootArg)
			if err != nil {
				return err
			}
			records, err = store.GetSubtree(cmd.Context(), id)
			if err != nil {
				return err
			}
		} else {
			roots, err := store.GetRoots(cmd.Context())
			if err != nil {
				return err
			}
			for _, root := range roots {
				sub, err := store.GetSubtree(cmd.Context(), root.ID)
				if err != nil {
					return err
				}
				records = append(records, sub...)
			}
		}

		if format == "json" {
			return printJSON(records)
		}
		return writeCSV(records)
	},
}

func writeCSV(records []*storage.Record) error {
	w := csv.NewWriter(os.Stdout)
	header := []string{
		"id", "kind", "parent_id", "root_id", "depth", "path", "sibling_position",
		"is_leaf", "child_count", "descendant_count", "title", "state",
		"label_priority", "label_type", "label_status", "label_team", "label_component",
		"days_open", "days_to_close", "is_overdue", "days_overdue", "completion_pct", "snapshot_date",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		parent := ""
		if rec.ParentID != nil {
			parent = rec.ParentID.String()
		}
		row := []string{
			rec.ID.String(), string(rec.Kind), parent, rec.RootID.String(),
			strconv.Itoa(rec.Depth), rec.Path, strconv.Itoa(rec.SiblingPosition),
			strconv.FormatBool(rec.IsLeaf), strconv.Itoa(rec.ChildCount), strconv.Itoa(rec.DescendantCount),
			rec.Title, string(rec.State),
			rec.LabelFields.Priority, rec.LabelFields.TypeLabel, rec.LabelFields.Status,
			rec.LabelFields.Team, rec.LabelFields.Component,
			intPtrCSV(rec.DaysOpen), intPtrCSV(rec.DaysToClose), strconv.FormatBool(rec.IsOverdue), intPtrCSV(rec.DaysOverdue),
			floatPtrCSV(rec.CompletionPct), rec.SnapshotDate,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func intPtrCSV(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func floatPtrCSV(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func init() {
	exportCmd.Flags().String("format", "json", "output format: json or csv")
	exportCmd.Flags().String("root", "", "export only the subtree under this item")
	rootCmd.AddCommand(exportCmd)
}
