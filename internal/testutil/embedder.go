package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// FakeEmbedder implements ai.Embedder with deterministic, offline vectors.
//
// Each input text maps to a fixed unit vector derived from its token hashes,
// so identical texts embed identically (cosine similarity 1.0) and texts
// sharing words score higher than unrelated ones. That is enough to test
// storage, ranking, and retrieval plumbing without a live embedding API.
type FakeEmbedder struct {
	Dim      int
	EmbedErr error // returned verbatim when set
	Calls    int
}

// NewFakeEmbedder returns a FakeEmbedder producing vectors of dim dimensions.
func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{Dim: dim}
}

func (e *FakeEmbedder) Name() string { return "fake-embedder" }

func (e *FakeEmbedder) Register(r api.Registry) {}

func (e *FakeEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.Calls++
	if e.EmbedErr != nil {
		return nil, e.EmbedErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embeddings := make([]*ai.Embedding, 0, len(req.Input))
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}
		embeddings = append(embeddings, &ai.Embedding{Embedding: e.vectorFor(text)})
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

// vectorFor spreads the text's words over the vector as a bag-of-words hash,
// then normalizes to unit length so cosine distance behaves.
func (e *FakeEmbedder) vectorFor(text string) []float32 {
	vec := make([]float64, e.Dim)

	word := make([]byte, 0, 32)
	flush := func() {
		if len(word) == 0 {
			return
		}
		h := fnv.New64a()
		_, _ = h.Write(word)
		sum := h.Sum64()
		vec[sum%uint64(e.Dim)] += 1.0
		vec[(sum>>16)%uint64(e.Dim)] += 0.5
		word = word[:0]
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ' ' || c == '\n' || c == '\t' || c == '.' || c == ',' || c == ':' {
			flush()
			continue
		}
		word = append(word, c)
	}
	flush()

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		norm = 1
	}

	out := make([]float32, e.Dim)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
