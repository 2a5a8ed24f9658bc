package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/quickmd/qmd/internal/async"
	"github.com/quickmd/qmd/internal/config"
	"github.com/quickmd/qmd/internal/embed"
	"github.com/quickmd/qmd/internal/index"
	"github.com/quickmd/qmd/internal/watcher"
)

func newWatchCmd(env *appEnv) *cobra.Command {
	var debounce time.Duration
	var model string

	cmd := &cobra.Command{
		Use:   "watch [collection]",
		Short: "Re-index collections as files change",
		Long: `Watches every collection root for filesystem changes and re-indexes
the affected collection after a quiet period. Each re-index runs as a
background job; a change arriving while a collection is still indexing
cancels the stale run and starts over. Runs until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}
			cols := cfg.ListCollections()
			if len(args) == 1 {
				col, ok := cfg.GetCollection(args[0])
				if !ok {
					return fmt.Errorf("unknown collection %q", args[0])
				}
				cols = []config.NamedCollection{col}
			}
			if len(cols) == 0 {
				return fmt.Errorf("no collections configured; add one with 'qmd collection add'")
			}

			s, err := env.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			w, err := watcher.New(debounce)
			if err != nil {
				return err
			}
			defer w.Close()

			for _, col := range cols {
				if err := w.AddCollection(col); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "watching %s (%s)\n", col.Name, col.Path)
			}

			ix := index.NewIndexer(s, model)
			jobs := async.NewManager()
			lastJob := make(map[string]string)
			ctx := cmd.Context()

			err = w.Run(ctx, func(collection string) {
				col, ok := cfg.GetCollection(collection)
				if !ok {
					return
				}

				// A burst that outlives the previous run supersedes it.
				if prev, ok := lastJob[collection]; ok {
					if jobs.Cancel(prev) {
						slog.Info("watch_superseded_run", slog.String("job_id", prev))
					}
				}
				jobs.CleanupOldJobs()

				id := jobs.Start(ctx, collection, func(jobCtx context.Context, progress func(done, total int)) (any, error) {
					res, err := ix.IndexCollection(jobCtx, col, func(p index.Progress) {
						if p.Stage == index.StageIndex {
							progress(p.Current, p.Total)
						}
					})
					if err != nil {
						return nil, err
					}
					if res.Changed() {
						printIndexResult(cmd, res)
					}
					return res, nil
				})
				lastJob[collection] = id
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounceWindow, "Quiet period before re-indexing a changed collection")
	cmd.Flags().StringVar(&model, "model", embed.StaticModelName, "Embedding model used when counting pending embeddings")
	return cmd
}
