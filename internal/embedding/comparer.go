package embedding

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rcliao/turn-memory/internal/model"
)

const defaultCacheSize = 512

// Comparer scores two records by the cosine similarity of their embeddings.
// Vectors are cached by text, so re-ranking the same history does not call
// the provider again. Negative similarity counts as unrelated.
type Comparer struct {
	embedder Embedder
	cache    *lru.Cache[string, Vector]
}

// NewComparer wraps an embedder. cacheSize <= 0 uses a default.
func NewComparer(e Embedder, cacheSize int) (*Comparer, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, Vector](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create vector cache: %w", err)
	}
	return &Comparer{embedder: e, cache: cache}, nil
}

// Compare implements relevance.Comparer.
func (c *Comparer) Compare(ctx context.Context, current, candidate model.Record) (float64, error) {
	a, err := c.vector(ctx, current)
	if err != nil {
		return 0, err
	}
	b, err := c.vector(ctx, candidate)
	if err != nil {
		return 0, err
	}
	sim := CosineSimilarity(a, b)
	if sim < 0 {
		return 0, nil
	}
	return sim, nil
}

func (c *Comparer) vector(ctx context.Context, r model.Record) (Vector, error) {
	text := RecordText(r)
	if text == "" {
		return nil, fmt.Errorf("record %q has no text to embed", r.Timestamp)
	}
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

// RecordText is the text embedded for a record: the raw input when present,
// otherwise its topic and keywords.
func RecordText(r model.Record) string {
	if s := strings.TrimSpace(r.RawInput); s != "" {
		return s
	}
	parts := make([]string, 0, len(r.Keywords)+1)
	if t := r.Topic(); t != "" {
		parts = append(parts, t)
	}
	parts = append(parts, r.Keywords...)
	return strings.TrimSpace(strings.Join(parts, " "))
}
