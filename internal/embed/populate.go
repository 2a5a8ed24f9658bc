package embed

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	qmderrors "github.com/quickmd/qmd/internal/errors"
	"github.com/quickmd/qmd/internal/store"
)

// DefaultPopulateWorkers is how many embedding batches run in flight at
// once. Ollama serializes on the GPU anyway, so a small number keeps
// the request pipeline full without queue blowup.
const DefaultPopulateWorkers = 2

// PopulateOptions controls EmbedMissing.
type PopulateOptions struct {
	BatchSize int
	Workers   int
	// Force drops every stored vector for the model first, so the whole
	// corpus re-embeds.
	Force bool
	// Progress, when set, observes (embedded, total) after each batch.
	Progress func(done, total int)
}

// PopulateResult summarizes one EmbedMissing run.
type PopulateResult struct {
	Embedded int
	Cleared  int
	Duration time.Duration
}

// EmbedMissing generates vectors for every active content hash that has
// none for the embedder's model. Batches are embedded concurrently but
// each batch's vectors are written before it counts as done, so an
// interrupted run resumes where it stopped.
func EmbedMissing(ctx context.Context, s *store.Store, e Embedder, opts PopulateOptions) (*PopulateResult, error) {
	start := time.Now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultPopulateWorkers
	}

	res := &PopulateResult{}
	if opts.Force {
		cleared, err := s.ClearAllEmbeddings(ctx, e.ModelName())
		if err != nil {
			return nil, err
		}
		res.Cleared = cleared
	}

	pending, err := s.HashesNeedingEmbedding(ctx, e.ModelName(), 0)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		res.Duration = time.Since(start)
		return res, nil
	}
	if !e.Available(ctx) {
		return nil, qmderrors.New(qmderrors.ErrCodeEmbedderUnavailable,
			"embedding backend is not reachable", nil).
			WithSuggestion("is Ollama running? try: ollama serve")
	}

	slog.Info("embed_run_started",
		slog.String("model", e.ModelName()),
		slog.Int("pending", len(pending)))

	type batch struct {
		items []store.PendingEmbedding
	}
	batches := make(chan batch)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		for i := 0; i < len(pending); i += opts.BatchSize {
			end := min(i+opts.BatchSize, len(pending))
			select {
			case batches <- batch{items: pending[i:end]}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	done := make(chan int)
	for w := 0; w < opts.Workers; w++ {
		g.Go(func() error {
			for b := range batches {
				texts := make([]string, len(b.items))
				for i, item := range b.items {
					texts[i] = item.Body
				}
				vecs, err := e.EmbedBatch(gctx, texts)
				if err != nil {
					return err
				}
				for i, item := range b.items {
					if err := s.InsertEmbedding(gctx, item.Hash, e.ModelName(), vecs[i]); err != nil {
						return err
					}
				}
				select {
				case done <- len(b.items):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	waitErr := make(chan error, 1)
	go func() {
		err := g.Wait()
		close(done)
		waitErr <- err
	}()

	for n := range done {
		res.Embedded += n
		if opts.Progress != nil {
			opts.Progress(res.Embedded, len(pending))
		}
	}
	if err := <-waitErr; err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	slog.Info("embed_run_completed",
		slog.String("model", e.ModelName()),
		slog.Int("embedded", res.Embedded),
		slog.Duration("duration", res.Duration))
	return res, nil
}
