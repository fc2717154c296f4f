package rag

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const embeddingBatchSize = 10 // embedding APIs often limit batch size

var ErrIndexNotReady = errors.New("no embeddings index available, build it first")

func init() {
	// Chunk metadata values travel through gob as interface values.
	gob.Register(map[string]any{})
	gob.Register("")
	gob.Register(0)
	gob.Register(0.0)
}

// Embedder converts texts into fixed-dimension vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Match is a search hit: a chunk plus its similarity to the query.
// Ephemeral, produced per search.
type Match struct {
	Content         string         `json:"content"`
	SimilarityScore float32        `json:"similarity_score"`
	Metadata        map[string]any `json:"metadata"`
	SourceReference string         `json:"source_reference"`
}

// Index holds chunk embeddings and supports exact nearest-neighbor search by
// inner product. Vectors are L2-normalized on insert, so inner product equals
// cosine similarity.
type Index struct {
	embedder  Embedder
	dimension int

	mu      sync.RWMutex
	vectors [][]float32
	chunks  []Chunk
	ready   bool
}

func NewIndex(embedder Embedder, dimension int) *Index {
	if dimension <= 0 {
		dimension = 384
	}
	return &Index{embedder: embedder, dimension: dimension}
}

// Build embeds all chunk contents and replaces any prior index. The swap is
// atomic from the caller's perspective: once Build returns, Search operates
// on the new set exclusively.
func (idx *Index) Build(ctx context.Context, chunks []Chunk) error {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	var vectors [][]float32
	for i := 0; i < len(texts); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := idx.embedder.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			return fmt.Errorf("embed chunk batch failed: %w", err)
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i := range vectors {
		if len(vectors[i]) != idx.dimension {
			return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vectors[i]), idx.dimension)
		}
		normalizeL2(vectors[i])
	}

	idx.mu.Lock()
	idx.vectors = vectors
	idx.chunks = chunks
	idx.ready = true
	idx.mu.Unlock()
	return nil
}

// Search embeds the query and returns the top-k chunks by inner-product score,
// descending. Ties keep insertion order.
func (idx *Index) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	idx.mu.RLock()
	ready := idx.ready
	vectors := idx.vectors
	chunks := idx.chunks
	idx.mu.RUnlock()

	if !ready {
		return nil, ErrIndexNotReady
	}
	if topK <= 0 {
		topK = 5
	}

	embedded, err := idx.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	if len(embedded) == 0 || len(embedded[0]) != idx.dimension {
		return nil, fmt.Errorf("query embedding has wrong shape")
	}
	queryVec := embedded[0]
	normalizeL2(queryVec)

	order := make([]int, len(vectors))
	scores := make([]float32, len(vectors))
	for i := range vectors {
		order[i] = i
		scores[i] = dot(queryVec, vectors[i])
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if topK > len(order) {
		topK = len(order)
	}
	matches := make([]Match, 0, topK)
	for _, i := range order[:topK] {
		matches = append(matches, Match{
			Content:         chunks[i].Content,
			SimilarityScore: scores[i],
			Metadata:        chunks[i].Metadata,
			SourceReference: fmt.Sprintf("Chunk %s", chunks[i].ChunkID),
		})
	}
	return matches, nil
}

type vectorBlob struct {
	Dimension int
	Vectors   [][]float32
}

// Save persists the vectors and the chunk payload as a blob pair
// (path.index and path.chunks).
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.ready {
		return ErrIndexNotReady
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create index dir failed: %w", err)
		}
	}
	if err := encodeGob(path+".index", vectorBlob{Dimension: idx.dimension, Vectors: idx.vectors}); err != nil {
		return fmt.Errorf("save index vectors failed: %w", err)
	}
	if err := encodeGob(path+".chunks", idx.chunks); err != nil {
		return fmt.Errorf("save index chunks failed: %w", err)
	}
	return nil
}

// Load restores a previously saved index. Returns false on any failure and
// leaves the current state untouched.
func (idx *Index) Load(path string) bool {
	var blob vectorBlob
	if err := decodeGob(path+".index", &blob); err != nil {
		return false
	}
	var chunks []Chunk
	if err := decodeGob(path+".chunks", &chunks); err != nil {
		log.Printf("decode chunks blob %s failed: %v", path, err)
		return false
	}
	if blob.Dimension != idx.dimension || len(blob.Vectors) != len(chunks) {
		log.Printf("saved index %s has incompatible shape, ignoring", path)
		return false
	}

	idx.mu.Lock()
	idx.vectors = blob.Vectors
	idx.chunks = chunks
	idx.ready = true
	idx.mu.Unlock()
	return true
}

func encodeGob(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(v)
}

func decodeGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}

func normalizeL2(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
