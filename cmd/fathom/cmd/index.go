package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fathomdev/fathom/pkg/engine"
)

func newIndexCmd() *cobra.Command {
	var force bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory tree incrementally",
		Long: `Index scans the tree, chunks changed files, and updates the search
indexes. Only files whose content changed since the last pass are
reprocessed. With --watch it keeps running and reindexes whenever
files settle after a change.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := engine.New(cmd.Context(), cfg, root)
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := runIndexPass(cmd, eng, force); err != nil {
				return err
			}
			if watch {
				return eng.Watch(cmd.Context())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reindex every file regardless of change detection")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and reindex on file changes")
	return cmd
}

func runIndexPass(cmd *cobra.Command, eng *engine.Engine, force bool) error {
	events, err := eng.Index(cmd.Context(), engine.IndexOptions{Force: force})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for event := range events {
		switch event.Phase {
		case engine.PhaseError:
			return event.Err
		case engine.PhaseChunk:
			fmt.Fprintf(out, "\rchunking %d/%d %s", event.Processed, event.Total, event.Path)
		case engine.PhaseEmbed:
			if event.Total > 0 {
				fmt.Fprintf(out, "\rembedding %d/%d", event.Processed, event.Total)
			}
		case engine.PhaseDone:
			s := event.Summary
			fmt.Fprintf(out, "\n%d files changed, %d deleted, %d chunks added, %d removed (%s)\n",
				s.FilesChanged, s.FilesDeleted, s.ChunksAdded, s.ChunksRemoved,
				s.Duration.Round(time.Millisecond))
		}
	}
	return nil
}
