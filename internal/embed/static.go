package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// StaticModelName identifies vectors produced by the static embedder.
const StaticModelName = "static"

// StaticEmbedder produces deterministic embeddings from hashed word and
// trigram features. The vectors carry no semantics beyond lexical
// overlap, but they are stable across runs, need no server, and give
// similar texts similar vectors. Used for tests and offline operation.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

var staticTokenRe = regexp.MustCompile(`[\pL\pN]+`)

func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{dims: StaticDimensions}
}

func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.generateVector(text), nil
}

func (e *StaticEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.generateVector(t)
	}
	return out, nil
}

// generateVector accumulates hashed features: whole words weighted
// above character trigrams so exact vocabulary dominates while trigrams
// still connect morphological variants.
func (e *StaticEmbedder) generateVector(text string) []float32 {
	vec := make([]float32, e.dims)
	lower := strings.ToLower(text)

	for _, word := range staticTokenRe.FindAllString(lower, -1) {
		vec[hashToIndex(word, e.dims)] += 2.0
		for _, gram := range trigrams(word) {
			vec[hashToIndex(gram, e.dims)] += 0.5
		}
	}
	return normalizeVector(vec)
}

func trigrams(word string) []string {
	runes := []rune(word)
	if len(runes) < 3 {
		return nil
	}
	grams := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+3]))
	}
	return grams
}

func hashToIndex(s string, size int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(size))
}

func (e *StaticEmbedder) Dimensions() int { return e.dims }

func (e *StaticEmbedder) ModelName() string { return StaticModelName }

func (e *StaticEmbedder) Available(_ context.Context) bool { return true }

func (e *StaticEmbedder) Close() error { return nil }
