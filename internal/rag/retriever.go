// Package rag builds focused queries over an indexed codebase and ranks the
// resulting chunks by embedding similarity for use as generation context.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/prdforge/prdforge/internal/embedding"
	"github.com/prdforge/prdforge/internal/vectorstore"
)

// technicalKeywords is the closed list of terms considered when extracting
// technical vocabulary from a PRD title/description into the focused query.
var technicalKeywords = []string{
	"api", "authentication", "database", "cache", "queue", "service",
	"repository", "controller", "model", "view", "async", "sync",
	"real-time", "webhook", "rest", "graphql", "storage", "persistence",
	"validation", "security", "encryption", "performance", "optimization",
	"scalability", "architecture",
}

const (
	// DefaultMaxChunks is the default maxChunks value.
	DefaultMaxChunks = 10
	// DefaultSimilarityThreshold is the default similarityThreshold value.
	DefaultSimilarityThreshold = 0.7
	maxQueryTokens             = 50
)

// Options configures a Retrieve call. Zero values fall back to the defaults.
type Options struct {
	MaxChunks           int
	SimilarityThreshold float32
}

func (o Options) withDefaults() Options {
	if o.MaxChunks <= 0 {
		o.MaxChunks = DefaultMaxChunks
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}
	return o
}

// Chunk is one retrieved context chunk, shaped for direct inclusion in the
// generation context pipeline.
type Chunk struct {
	FilePath    string
	Content     string
	StartLine   int
	EndLine     int
	ChunkType   string
	FirstSymbol string
	Similarity  float32
	Language    string
}

// Result is the retriever's response: ranked chunks plus a context-quality
// signal.
type Result struct {
	Chunks         []Chunk
	MeanSimilarity float32
}

// Retriever embeds a focused query and ranks a project's indexed chunks by
// similarity.
type Retriever struct {
	Store    vectorstore.VectorStore
	Embedder embedding.Embedder
}

// New constructs a Retriever.
func New(store vectorstore.VectorStore, embedder embedding.Embedder) *Retriever {
	return &Retriever{Store: store, Embedder: embedder}
}

// BuildQuery assembles the focused query: title, then extracted technical
// keywords present in the title/description, truncated to 50 whitespace
// tokens.
func BuildQuery(prdTitle, prdDescription string) string {
	haystack := strings.ToLower(prdTitle + " " + prdDescription)

	tokens := strings.Fields(prdTitle)
	seen := make(map[string]bool, len(technicalKeywords))
	for _, kw := range technicalKeywords {
		if seen[kw] {
			continue
		}
		if strings.Contains(haystack, kw) {
			tokens = append(tokens, kw)
			seen[kw] = true
		}
	}

	if len(tokens) > maxQueryTokens {
		tokens = tokens[:maxQueryTokens]
	}
	return strings.Join(tokens, " ")
}

// Retrieve returns up to opts.MaxChunks chunks for projectID, ordered by
// descending similarity with (filePath asc, startLine asc) tie-break. An
// empty result is a valid response.
func (r *Retriever) Retrieve(ctx context.Context, projectID, prdTitle, prdDescription string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	query := BuildQuery(prdTitle, prdDescription)
	emb, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed retrieval query: %w", err)
	}

	hits, err := r.Store.SearchVector(ctx, emb.Vector, vectorstore.SearchOptions{
		Limit:     opts.MaxChunks * 4, // over-fetch; project filter + threshold narrow it below
		Threshold: opts.SimilarityThreshold,
		Filters:   map[string]interface{}{"project_id": projectID},
	})
	if err != nil {
		return nil, fmt.Errorf("search project %s: %w", projectID, err)
	}

	chunks := make([]Chunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Score <= opts.SimilarityThreshold {
			continue
		}
		chunks = append(chunks, toChunk(hit))
	}

	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Similarity != chunks[j].Similarity {
			return chunks[i].Similarity > chunks[j].Similarity
		}
		if chunks[i].FilePath != chunks[j].FilePath {
			return chunks[i].FilePath < chunks[j].FilePath
		}
		return chunks[i].StartLine < chunks[j].StartLine
	})

	if len(chunks) > opts.MaxChunks {
		chunks = chunks[:opts.MaxChunks]
	}

	res := &Result{Chunks: chunks}
	if len(chunks) > 0 {
		var sum float32
		for _, c := range chunks {
			sum += c.Similarity
		}
		res.MeanSimilarity = sum / float32(len(chunks))
	}
	return res, nil
}

// toChunk reads the typed Document fields first, falling back to Metadata so
// documents written before those fields existed still retrieve correctly.
func toChunk(hit vectorstore.SearchResult) Chunk {
	doc := hit.Document
	c := Chunk{
		FilePath:   doc.FilePath,
		Content:    doc.Content,
		StartLine:  doc.StartLine,
		EndLine:    doc.EndLine,
		ChunkType:  doc.ChunkType,
		Language:   doc.Language,
		Similarity: hit.Score,
	}
	if c.FilePath == "" {
		if v, ok := doc.Metadata["file_path"].(string); ok {
			c.FilePath = v
		}
	}
	if c.Language == "" {
		if v, ok := doc.Metadata["language"].(string); ok {
			c.Language = v
		}
	}
	if c.ChunkType == "" {
		if v, ok := doc.Metadata["type"].(string); ok {
			c.ChunkType = v
		}
	}
	if c.StartLine == 0 {
		if v, ok := doc.Metadata["start_line"].(int); ok {
			c.StartLine = v
		}
	}
	if c.EndLine == 0 {
		if v, ok := doc.Metadata["end_line"].(int); ok {
			c.EndLine = v
		}
	}
	if v, ok := doc.Metadata["first_symbol"].(string); ok {
		c.FirstSymbol = v
	}
	return c
}
