// Package search implements the three query paths: BM25 keyword search,
// vector similarity search, and hybrid search that fuses both with
// reciprocal rank fusion. Results are cached in the store until the next
// write invalidates them.
package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	qmderrors "github.com/quickmd/qmd/internal/errors"
	"github.com/quickmd/qmd/internal/store"
)

const (
	// ftsCandidateLimit is how many keyword candidates feed fusion,
	// independent of the caller's limit.
	ftsCandidateLimit = 20

	// strongSignalScore and strongSignalGap define the shortcut: when
	// the top keyword hit scores at least strongSignalScore and leads
	// the runner-up by at least strongSignalGap, hybrid search skips the
	// vector pass entirely.
	strongSignalScore = 0.85
	strongSignalGap   = 0.15
)

// Options controls a single query.
type Options struct {
	Limit      int
	Collection string
	MinScore   float64
	// NoCache bypasses the result cache for this query, read and write.
	NoCache bool
}

func (o Options) limit() int {
	if o.Limit <= 0 {
		return 10
	}
	return o.Limit
}

// VectorSearcher is the vector path as the engine sees it.
type VectorSearcher interface {
	Search(ctx context.Context, query string, limit int, collection string, minScore float64) ([]store.SearchResult, error)
}

var _ VectorSearcher = (*VectorEngine)(nil)

// KeywordSearcher is the BM25 path as the engine sees it, satisfied by
// *store.Store.
type KeywordSearcher interface {
	SearchFTS(ctx context.Context, query string, limit int, collection string) ([]store.SearchResult, error)
}

var _ KeywordSearcher = (*store.Store)(nil)

// Engine routes queries to the keyword and vector paths. A nil vector
// searcher disables vsearch and degrades hybrid search to keyword-only.
type Engine struct {
	store   *store.Store
	keyword KeywordSearcher
	vector  VectorSearcher
}

func NewEngine(s *store.Store, vector VectorSearcher) *Engine {
	return &Engine{store: s, keyword: s, vector: vector}
}

// Search runs keyword-only BM25 search.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]store.SearchResult, error) {
	return e.cached(ctx, "search", query, opts, func() ([]store.SearchResult, error) {
		results, err := e.keyword.SearchFTS(ctx, query, opts.limit(), opts.Collection)
		if err != nil {
			return nil, err
		}
		return filterMinScore(results, opts.MinScore), nil
	})
}

// VSearch runs vector-only similarity search. Fails with ERR_404 when
// no embeddings exist yet.
func (e *Engine) VSearch(ctx context.Context, query string, opts Options) ([]store.SearchResult, error) {
	if e.vector == nil {
		return nil, qmderrors.New(qmderrors.ErrCodeVectorIndexUnavailable,
			"vector search is not configured", nil)
	}
	return e.cached(ctx, "vsearch", query, opts, func() ([]store.SearchResult, error) {
		return e.vector.Search(ctx, query, opts.limit(), opts.Collection, opts.MinScore)
	})
}

// Query runs hybrid search: keyword candidates first, then either the
// strong-signal shortcut or fusion with the vector list. When the
// vector index is unavailable the keyword results stand alone.
func (e *Engine) Query(ctx context.Context, query string, opts Options) ([]store.SearchResult, error) {
	return e.cached(ctx, "query", query, opts, func() ([]store.SearchResult, error) {
		ftsResults, err := e.keyword.SearchFTS(ctx, query, ftsCandidateLimit, opts.Collection)
		if err != nil {
			return nil, err
		}

		if hasStrongSignal(ftsResults) {
			slog.Debug("strong_signal_shortcut",
				slog.String("query", query),
				slog.Float64("top_score", ftsResults[0].Score))
			return truncate(filterMinScore(ftsResults, opts.MinScore), opts.limit()), nil
		}

		var vecResults []store.SearchResult
		if e.vector != nil {
			vecResults, err = e.vector.Search(ctx, query, ftsCandidateLimit, opts.Collection, 0)
			if err != nil {
				if !qmderrors.IsVectorUnavailable(err) {
					return nil, err
				}
				slog.Warn("hybrid_degraded_to_keyword",
					slog.String("reason", err.Error()))
			}
		}

		fused := FuseRRF(ftsResults, vecResults)
		return truncate(filterMinScore(fused, opts.MinScore), opts.limit()), nil
	})
}

// hasStrongSignal reports whether the top keyword hit is decisive
// enough to skip the vector pass.
func hasStrongSignal(results []store.SearchResult) bool {
	if len(results) == 0 || results[0].Score < strongSignalScore {
		return false
	}
	if len(results) == 1 {
		return true
	}
	return results[0].Score-results[1].Score >= strongSignalGap
}

// cached wraps a query computation with the persistent result cache.
func (e *Engine) cached(ctx context.Context, mode, query string, opts Options, compute func() ([]store.SearchResult, error)) ([]store.SearchResult, error) {
	var key string
	if !opts.NoCache {
		key = store.CacheKey(mode,
			store.NormalizeCacheQuery(query),
			opts.Collection,
			strconv.Itoa(opts.limit()),
			strconv.FormatFloat(opts.MinScore, 'f', -1, 64))
		if raw, ok, err := e.store.GetCachedResult(ctx, key); err == nil && ok {
			var results []store.SearchResult
			if err := json.Unmarshal(raw, &results); err == nil {
				slog.Debug("result_cache_hit", slog.String("mode", mode))
				return results, nil
			}
		}
	}

	results, err := compute()
	if err != nil {
		return nil, err
	}

	if !opts.NoCache {
		if raw, err := json.Marshal(results); err == nil {
			if err := e.store.SetCachedResult(ctx, key, raw); err != nil {
				slog.Debug("result_cache_write_failed", slog.String("error", err.Error()))
			}
		}
	}
	return results, nil
}

func filterMinScore(results []store.SearchResult, minScore float64) []store.SearchResult {
	if minScore <= 0 {
		return results
	}
	out := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}

func truncate(results []store.SearchResult, limit int) []store.SearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
