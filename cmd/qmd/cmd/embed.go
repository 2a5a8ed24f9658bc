package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quickmd/qmd/internal/embed"
)

func newEmbedCmd(env *appEnv) *cobra.Command {
	var (
		model     string
		batchSize int
		workers   int
		force     bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Generate embeddings for indexed documents",
		Long: `Embeds every document body that has no vector for the chosen model.
Already-embedded content is skipped, so reruns only pick up new or
changed documents. Use --force to re-embed everything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := env.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			embedder := newEmbedder(model)
			defer embedder.Close()

			opts := embed.PopulateOptions{
				BatchSize: batchSize,
				Workers:   workers,
				Force:     force,
			}
			if !quiet {
				opts.Progress = func(done, total int) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\rembedding %d/%d ", done, total)
					if done == total {
						fmt.Fprintln(cmd.ErrOrStderr())
					}
				}
			}

			res, err := embed.EmbedMissing(cmd.Context(), s, embedder, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Cleared > 0 {
				fmt.Fprintf(out, "Cleared %d existing vectors.\n", res.Cleared)
			}
			if res.Embedded == 0 {
				fmt.Fprintln(out, "All documents already embedded.")
				return nil
			}
			fmt.Fprintf(out, "Embedded %d documents with %s in %s.\n",
				res.Embedded, embedder.ModelName(), res.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", embed.StaticModelName, "Embedding model (static or an Ollama model name)")
	cmd.Flags().IntVar(&batchSize, "batch-size", embed.DefaultBatchSize, "Texts per embedding request")
	cmd.Flags().IntVar(&workers, "workers", embed.DefaultPopulateWorkers, "Concurrent embedding batches")
	cmd.Flags().BoolVar(&force, "force", false, "Re-embed all content, replacing stored vectors")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	return cmd
}
