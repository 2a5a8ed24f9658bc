package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quickmd/qmd/internal/embed"
)

func newStatusCmd(env *appEnv) *cobra.Command {
	var health bool
	var model string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := env.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			out := cmd.OutOrStdout()

			if health {
				h, err := s.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "orphaned content rows:  %d\n", h.OrphanedContent)
				fmt.Fprintf(out, "inactive documents:     %d\n", h.InactiveDocuments)
				fmt.Fprintf(out, "FTS rows out of sync:   %d\n", h.FTSOutOfSync)
				fmt.Fprintf(out, "dangling embeddings:    %d\n", h.DanglingEmbeddings)
				if h.Healthy() {
					fmt.Fprintln(out, "index is healthy")
					return nil
				}
				return fmt.Errorf("index has consistency problems; 'qmd vacuum' repairs most of them")
			}

			st, err := s.Status(cmd.Context(), model)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Database: %s (%s)\n\n", s.Path(), formatBytes(st.DBSizeBytes))
			for _, col := range st.Collections {
				fmt.Fprintf(out, "  %-20s %d documents\n", col.Name, col.ActiveDocuments)
			}
			if len(st.Collections) > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "active documents:  %d (of %d total)\n", st.ActiveDocuments, st.TotalDocuments)
			fmt.Fprintf(out, "content rows:      %d\n", st.ContentRows)
			fmt.Fprintf(out, "embedded hashes:   %d (%s)\n", st.EmbeddedHashes, model)
			fmt.Fprintf(out, "pending hashes:    %d\n", st.PendingHashes)
			fmt.Fprintf(out, "cached results:    %d\n", st.CacheEntries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&health, "health", false, "Run consistency checks instead of printing statistics")
	cmd.Flags().StringVar(&model, "model", embed.StaticModelName, "Model used when counting embedded and pending hashes")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
