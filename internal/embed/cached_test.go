package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps StaticEmbedder and counts backend calls.
type countingEmbedder struct {
	*StaticEmbedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_AvoidsRepeatCalls(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)
	ctx := context.Background()

	v1, err := c.Embed(ctx, "repeated query")
	require.NoError(t, err)
	v2, err := c.Embed(ctx, "repeated query")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestCachedEmbedder_BatchForwardsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Embed(ctx, "warm")
	require.NoError(t, err)
	require.Equal(t, int64(1), inner.calls.Load())

	vecs, err := c.EmbedBatch(ctx, []string{"cold-a", "warm", "cold-b"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, int64(3), inner.calls.Load(), "only the two misses reach the backend")

	warm, err := inner.StaticEmbedder.Embed(ctx, "warm")
	require.NoError(t, err)
	assert.Equal(t, warm, vecs[1], "cached result keeps its position")
}

func TestCachedEmbedder_DelegatesMetadata(t *testing.T) {
	c, err := NewCachedEmbedder(NewStaticEmbedder(), 0)
	require.NoError(t, err)
	assert.Equal(t, StaticDimensions, c.Dimensions())
	assert.Equal(t, "static", c.ModelName())
	assert.True(t, c.Available(context.Background()))
	assert.NoError(t, c.Close())
}
