package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quickmd/qmd/internal/embed"
	"github.com/quickmd/qmd/internal/index"
)

func newIndexCmd(env *appEnv) *cobra.Command {
	var quiet bool
	var model string

	cmd := &cobra.Command{
		Use:   "index [collection]",
		Short: "Index collections incrementally",
		Long: `Scans each collection's directory and brings the index up to date.
Unchanged files are skipped, modified files are re-indexed, and files
that disappeared from disk are deactivated but kept in history.

With no argument every configured collection is indexed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}
			s, err := env.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var progress index.ProgressFunc
			if !quiet {
				progress = func(p index.Progress) {
					if p.Stage != index.StageIndex || p.Total == 0 {
						return
					}
					if p.ETA > 0 {
						fmt.Fprintf(cmd.ErrOrStderr(), "\r[%d/%d] %-50s eta %s ", p.Current, p.Total, trimPath(p.Path, 50), p.ETA.Round(time.Second))
					} else {
						fmt.Fprintf(cmd.ErrOrStderr(), "\r[%d/%d] %-50s ", p.Current, p.Total, trimPath(p.Path, 50))
					}
					if p.Current == p.Total {
						fmt.Fprintln(cmd.ErrOrStderr())
					}
				}
			}

			ix := index.NewIndexer(s, model)

			var results []*index.Result
			if len(args) == 1 {
				col, ok := cfg.GetCollection(args[0])
				if !ok {
					return fmt.Errorf("unknown collection %q", args[0])
				}
				res, err := ix.IndexCollection(cmd.Context(), col, progress)
				if err != nil {
					return err
				}
				results = append(results, res)
			} else {
				results, err = ix.IndexAll(cmd.Context(), cfg, progress)
				if err != nil {
					return err
				}
			}

			for _, res := range results {
				printIndexResult(cmd, res)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress per-file progress output")
	cmd.Flags().StringVar(&model, "model", embed.StaticModelName, "Embedding model used when counting pending embeddings")
	return cmd
}

func printIndexResult(cmd *cobra.Command, res *index.Result) {
	out := cmd.OutOrStdout()
	if !res.Changed() {
		fmt.Fprintf(out, "%s: up to date (%d files, %s)\n", res.Collection, res.Scanned, res.Duration.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(out, "%s: %d indexed, %d updated, %d unchanged, %d removed (%s)\n",
		res.Collection, res.Indexed, res.Updated, res.Unchanged, res.Removed, res.Duration.Round(time.Millisecond))
	if res.Skipped > 0 {
		fmt.Fprintf(out, "  skipped %d empty files\n", res.Skipped)
	}
	if res.NeedsEmbedding > 0 {
		fmt.Fprintf(out, "  %d documents need embeddings; run 'qmd embed'\n", res.NeedsEmbedding)
	}
}

func trimPath(p string, max int) string {
	if len(p) <= max {
		return p
	}
	return "…" + p[len(p)-max+1:]
}
