package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/uschtwill/hiersnap/internal/config"
	"github.com/uschtwill/hiersnap/internal/extractor"
	"github.com/uschtwill/hiersnap/internal/gitlab"
	"github.com/uschtwill/hiersnap/internal/labels"
	"github.com/uschtwill/hiersnap/internal/resolver"
	"github.com/uschtwill/hiersnap/internal/storage"
	"github.com/uschtwill/hiersnap/internal/storage/memory"
	"github.com/uschtwill/hiersnap/internal/types"
)

var extractCmd = &cobra.Command{
	Use:     "extract <root-epic-id>",
	GroupID: "extract",
	Short:   "Extract a hierarchy and commit it as a snapshot",
	Long: `Extract the hierarchy rooted at the given epic and commit it to the
snapshot database under today's date (or --snapshot-date).

The root is named by its composite identity, e.g. epic:42#7 for epic 7
in group 42.

Strategies:
  incremental  walk the tree from the root, one parent at a time
  bulk         fetch whole groups in parallel and link locally

Examples:
  hx extract epic:42#7
  hx extract epic:42#7 --strategy bulk --groups 42,43
  hx extract epic:42#7 --max-depth 3 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootID, err := types.ParseItemID(args[0])
		if err != nil {
			return err
		}

		strategy, _ := cmd.Flags().GetString("strategy")
		if strategy == "" {
			strategy = config.GetString("extract.strategy")
		}
		maxDepth, _ := cmd.Flags().GetInt("max-depth")
		if !cmd.Flags().Changed("max-depth") {
			maxDepth = config.GetInt("extract.max-depth")
		}
		groups, _ := cmd.Flags().GetIntSlice("groups")
		if len(groups) == 0 {
			groups = config.GetIntSlice("extract.groups")
		}
		snapshotDate, _ := cmd.Flags().GetString("snapshot-date")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		patternsFile, _ := cmd.Flags().GetString("label-patterns")
		if patternsFile == "" {
			patternsFile = config.GetString("labels.patterns-file")
		}
		var patterns []labels.Pattern
		if patternsFile != "" {
			patterns, err = labels.LoadPatterns(patternsFile)
			if err != nil {
				return err
			}
		}

		baseURL := config.GetString("gitlab.url")
		if baseURL == "" {
			return fmt.Errorf("gitlab.url is not configured (set HX_GITLAB_URL or .hiersnap/config.yaml)")
		}
		client, err := gitlab.New(gitlab.Options{
			BaseURL:    baseURL,
			Token:      config.GetString("gitlab.token"),
			PerPage:    config.GetInt("gitlab.per-page"),
			Timeout:    config.GetDuration("gitlab.timeout"),
			RetryCount: config.GetInt("gitlab.retries"),
		})
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		// Dry runs never touch the database file.
		var store storage.Storage = memory.New()
		if !dryRun {
			store, err = openStore(cmd.Context())
			if err != nil {
				return err
			}
		}
		defer func() { _ = store.Close() }()

		sum, err := extractor.New(client, store).Run(cmd.Context(), extractor.Options{
			RootID:        rootID,
			Strategy:      extractor.Strategy(strategy),
			Scope:         resolver.Scope{Containers: groups, MaxDepth: maxDepth},
			SnapshotDate:  snapshotDate,
			LabelPatterns: patterns,
			DryRun:        dryRun,
		})
		if err != nil {
			return err
		}

		for _, w := range sum.Warnings {
			warn("%s", w)
		}
		for _, c := range sum.Cycles {
			warn("cycle edge discarded: %s", c)
		}
		for _, o := range sum.Orphans {
			warn("orphan excluded: %s", o)
		}

		if jsonOutput() {
			return printJSON(sum)
		}
		printSummary(sum, dryRun)
		return nil
	},
}

func printSummary(sum *types.Summary, dryRun bool) {
	verb := "Committed"
	if dryRun {
		verb = "Assembled (dry run)"
	}
	fmt.Printf("%s snapshot %s for %s\n", verb, sum.SnapshotDate.Format("2006-01-02"), sum.RootID)
	fmt.Printf("  run:         %s\n", sum.RunID)
	fmt.Printf("  items:       %d (%d epics, %d issues)\n", sum.TotalItems, sum.EpicCount, sum.IssueCount)
	fmt.Printf("  state:       %d open, %d closed\n", sum.OpenCount, sum.ClosedCount)
	fmt.Printf("  depth:       %d, %d leaves\n", sum.MaxDepth, sum.LeafCount)
	if !dryRun {
		fmt.Printf("  rows:        %d inserted, %d superseded\n", sum.Inserted, sum.Superseded)
	}
	if sum.OrphanCount > 0 || sum.CycleCount > 0 {
		fmt.Printf("  excluded:    %d orphans, %d cycle edges\n", sum.OrphanCount, sum.CycleCount)
	}
	fmt.Printf("  elapsed:     %s\n", time.Duration(sum.ElapsedSeconds*float64(time.Second)).Round(time.Millisecond))
}

func init() {
	extractCmd.Flags().String("strategy", "", "resolution strategy: incremental or bulk")
	extractCmd.Flags().IntSlice("groups", nil, "group ids for the bulk strategy")
	extractCmd.Flags().Int("max-depth", 0, "depth bound, 0 for unbounded")
	extractCmd.Flags().String("snapshot-date", "", "snapshot date (YYYY-MM-DD, default today)")
	extractCmd.Flags().String("label-patterns", "", "YAML file with label normalization patterns")
	extractCmd.Flags().Bool("dry-run", false, "assemble and report without writing")
	rootCmd.AddCommand(extractCmd)
}
