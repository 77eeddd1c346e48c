package main

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/uschtwill/hiersnap/internal/config"
	"github.com/uschtwill/hiersnap/internal/debug"
	"github.com/uschtwill/hiersnap/internal/types"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: "query",
	Short:   "Show aggregate statistics for the latest snapshot",
	Long: `Show aggregate statistics over the latest snapshot rows.

With --watch, keep running and reprint whenever the database changes.

Examples:
  hx stats
  hx stats --json
  hx stats --watch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		show := func() error {
			st, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(st)
			}
			printStats(st)
			return nil
		}

		if err := show(); err != nil {
			return err
		}

		watch, _ := cmd.Flags().GetBool("watch")
		if !watch {
			return nil
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		defer func() { _ = watcher.Close() }()

		// Watch the directory: SQLite swaps WAL files, and watching the
		// db file directly misses those renames.
		if err := watcher.Add(filepath.Dir(config.GetString("db"))); err != nil {
			return fmt.Errorf("watch: %w", err)
		}

		base := filepath.Base(config.GetString("db"))
		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !matchesDB(ev.Name, base) || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				debug.Logf("stats: change on %s", ev.Name)
				fmt.Println()
				if err := show(); err != nil {
					return err
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				warn("watch: %v", err)
			}
		}
	},
}

// matchesDB matches the database file and its WAL/SHM side files.
func matchesDB(path, base string) bool {
	name := filepath.Base(path)
	return name == base || name == base+"-wal" || name == base+"-shm"
}

func printStats(st *types.Stats) {
	fmt.Printf("Items:      %d (%d epics, %d issues)\n", st.TotalItems, st.EpicCount, st.IssueCount)
	fmt.Printf("State:      %d open, %d closed\n", st.OpenCount, st.ClosedCount)
	fmt.Printf("Shape:      %d roots, %d leaves, max depth %d, avg depth %.2f\n",
		st.RootCount, st.LeafCount, st.MaxDepth, st.AvgDepth)
	if st.FirstSnapshot != nil && st.LastSnapshot != nil {
		fmt.Printf("Snapshots:  %s .. %s\n",
			st.FirstSnapshot.Format("2006-01-02"), st.LastSnapshot.Format("2006-01-02"))
	}
}

func init() {
	statsCmd.Flags().Bool("watch", false, "keep running and reprint on database changes")
	rootCmd.AddCommand(statsCmd)
}
