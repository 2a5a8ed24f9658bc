package search

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/quickmd/qmd/internal/embed"
	qmderrors "github.com/quickmd/qmd/internal/errors"
	"github.com/quickmd/qmd/internal/store"
)

// collectionOversample is how many extra candidates vector search pulls
// when a collection filter applies, since filtering happens after the
// nearest-neighbor pass.
const collectionOversample = 4

// VectorEngine answers semantic queries from an in-memory HNSW graph
// built over the stored embeddings. The graph is rebuilt lazily when the
// store's generation moves, so writes anywhere invalidate it without
// coordination.
type VectorEngine struct {
	store    *store.Store
	embedder embed.Embedder

	mu        sync.Mutex
	graph     *hnsw.Graph[uint64]
	keyToHash map[uint64]string
	builtGen  int64
	everBuilt bool
}

func NewVectorEngine(s *store.Store, e embed.Embedder) *VectorEngine {
	return &VectorEngine{store: s, embedder: e}
}

// ensureIndex rebuilds the graph if the store changed since the last
// build. Returns ERR_404 when no embeddings exist for the model.
func (v *VectorEngine) ensureIndex(ctx context.Context) error {
	gen := v.store.Generation()
	if v.everBuilt && v.builtGen == gen && v.graph.Len() > 0 {
		return nil
	}

	embs, err := v.store.EmbeddingsForModel(ctx, v.embedder.ModelName())
	if err != nil {
		return err
	}
	if len(embs) == 0 {
		return qmderrors.VectorIndexUnavailable(v.embedder.ModelName())
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	keyToHash := make(map[uint64]string, len(embs))
	for i, e := range embs {
		key := uint64(i)
		graph.Add(hnsw.MakeNode(key, e.Vector))
		keyToHash[key] = e.Hash
	}

	v.graph = graph
	v.keyToHash = keyToHash
	v.builtGen = gen
	v.everBuilt = true
	slog.Debug("vector_index_built",
		slog.Int("vectors", len(embs)),
		slog.String("model", v.embedder.ModelName()))
	return nil
}

// Search embeds the query and returns the closest documents as complete
// result records, ordered by score descending with ties broken by
// document id. minScore filters before the limit applies.
func (v *VectorEngine) Search(ctx context.Context, query string, limit int, collection string, minScore float64) ([]store.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.ensureIndex(ctx); err != nil {
		return nil, err
	}

	qvec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	k := limit
	if collection != "" {
		k *= collectionOversample
	}
	if k > v.graph.Len() {
		k = v.graph.Len()
	}

	nodes := v.graph.Search(qvec, k)

	hashScores := make(map[string]float64, len(nodes))
	hashes := make([]string, 0, len(nodes))
	for _, node := range nodes {
		hash, ok := v.keyToHash[node.Key]
		if !ok {
			continue
		}
		score := distanceToScore(v.graph.Distance(qvec, node.Value))
		if prev, seen := hashScores[hash]; !seen || score > prev {
			if !seen {
				hashes = append(hashes, hash)
			}
			hashScores[hash] = score
		}
	}

	docs, err := v.store.DocumentsByHashes(ctx, collection, hashes)
	if err != nil {
		return nil, err
	}

	results := make([]store.SearchResult, 0, len(docs))
	for _, d := range docs {
		score := hashScores[d.Hash]
		if score < minScore {
			continue
		}
		body, ok, err := v.store.GetContentBody(ctx, d.Hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		results = append(results, store.SearchResult{
			Docid:          d.Docid(),
			Filepath:       d.VirtualPath(),
			Title:          d.Title,
			DisplayPath:    d.Collection + "/" + d.Path,
			Score:          score,
			Body:           body,
			CollectionName: d.Collection,
			Hash:           d.Hash,
			Source:         "vec",
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Docid < results[j].Docid
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// distanceToScore maps cosine distance to a similarity in [0,1].
func distanceToScore(distance float32) float64 {
	score := 1 - float64(distance)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
