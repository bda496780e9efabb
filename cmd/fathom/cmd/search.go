package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fathomdev/fathom/pkg/engine"
)

func newSearchCmd() *cobra.Command {
	var limit int
	var root string

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search the index with hybrid lexical and semantic ranking",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := engine.New(cmd.Context(), cfg, root)
			if err != nil {
				return err
			}
			defer eng.Close()

			results, err := eng.Retrieve(cmd.Context(), query, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%2d. %s:%d-%d (%.4f)\n", i+1, r.Path, r.StartLine, r.EndLine, r.Score)
				fmt.Fprintf(out, "    %s\n", firstLine(r.Content))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (default from config)")
	cmd.Flags().StringVar(&root, "path", ".", "Indexed tree root")
	return cmd
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return strings.TrimSpace(s)
}

func newStatsCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := engine.New(cmd.Context(), cfg, root)
			if err != nil {
				return err
			}
			defer eng.Close()

			stats, err := eng.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "files:         %d\n", stats.Files)
			fmt.Fprintf(out, "chunks:        %d (%d unique)\n", stats.Chunks, stats.UniqueChunks)
			fmt.Fprintf(out, "vectors:       %d\n", stats.Vectors)
			fmt.Fprintf(out, "lexical:       %v\n", stats.Capabilities.Lexical)
			fmt.Fprintf(out, "semantic:      %v\n", stats.Capabilities.Vector)
			if stats.Model != "" {
				fmt.Fprintf(out, "embed model:   %s\n", stats.Model)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "path", ".", "Indexed tree root")
	return cmd
}

func newResetCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard all indexed state for a tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := engine.New(cmd.Context(), cfg, root)
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "index reset")
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "path", ".", "Indexed tree root")
	return cmd
}
