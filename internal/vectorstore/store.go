// Package vectorstore provides storage abstractions for vectors and metadata with hybrid search.
package vectorstore

import (
	"context"
	"time"

	"github.com/prdforge/prdforge/internal/embedding"
)

// Document is a stored §3 CodeChunk paired with its CodeEmbedding vector.
// ProjectID/FilePath/Language/ChunkType/ContentHash/StartLine/EndLine are the
// fields callers filter and rank on and so are typed columns rather than
// entries in Metadata; Metadata carries everything else a CodeChunk or an
// indexer may attach (imports, first symbol, commit author, ...).
type Document struct {
	ID          string                 // Unique document identifier ("<projectID>:<chunkID>")
	ProjectID   string                 // Owning CodebaseProject
	FilePath    string                 // Path of the source file this chunk was cut from
	Language    string                 // Source language ("go", "python", ...)
	ChunkType   string                 // §3 ChunkType ("function", "class", ...)
	ContentHash string                 // Content hash, for dedup against re-indexing
	StartLine   int                    // First line of the chunk in its file
	EndLine     int                    // Last line of the chunk in its file
	Content     string                 // Original text content
	Vector      embedding.Vector       // Dense embedding vector
	Metadata    map[string]interface{} // Extensible metadata beyond the typed fields above
	CreatedAt   time.Time              // When the document was stored
	UpdatedAt   time.Time              // Last update timestamp
}

// filterableFields is the closed set of Document fields exposed as named,
// typed filter keys; matched against the typed field first, falling back to
// Metadata so callers that stash the same value under Metadata still filter
// correctly.
func filterValue(doc Document, key string) (interface{}, bool) {
	switch key {
	case "project_id":
		if doc.ProjectID != "" {
			return doc.ProjectID, true
		}
	case "file_path":
		if doc.FilePath != "" {
			return doc.FilePath, true
		}
	case "language":
		if doc.Language != "" {
			return doc.Language, true
		}
	case "chunk_type":
		if doc.ChunkType != "" {
			return doc.ChunkType, true
		}
	}
	v, ok := doc.Metadata[key]
	return v, ok
}

// SearchResult represents a single search result with relevance score.
type SearchResult struct {
	Document Document // The matched document
	Score    float32  // Relevance score (higher is better)
	Method   string   // Search method used ("bm25", "vector", "hybrid")
}

// SearchOptions configures search behavior.
type SearchOptions struct {
	Limit       int                    // Maximum number of results
	Offset      int                    // Number of leading results to skip
	Threshold   float32                // Minimum score threshold
	Filters     map[string]interface{} // Metadata filters (e.g., language="go")
	Rerank      bool                   // Apply reranking to results
}

// VectorStore provides hybrid search over stored documents.
type VectorStore interface {
	// Upsert inserts or updates a document with its vector.
	Upsert(ctx context.Context, doc Document) error
	
	// UpsertBatch efficiently inserts or updates multiple documents.
	UpsertBatch(ctx context.Context, docs []Document) error
	
	// Delete removes a document by ID.
	Delete(ctx context.Context, id string) error
	
	// Get retrieves a document by ID.
	Get(ctx context.Context, id string) (*Document, error)
	
	// SearchVector performs dense vector similarity search.
	SearchVector(ctx context.Context, vector embedding.Vector, opts SearchOptions) ([]SearchResult, error)
	
	// SearchBM25 performs sparse keyword search using BM25.
	SearchBM25(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)
	
	// SearchHybrid combines vector and BM25 search with fusion.
	SearchHybrid(ctx context.Context, query string, vector embedding.Vector, opts SearchOptions) ([]SearchResult, error)
	
	// Count returns the total number of documents.
	Count(ctx context.Context) (int64, error)
	
	// Close releases resources.
	Close() error
}

// IndexStats provides statistics about the vector store.
type IndexStats struct {
	TotalDocuments int64             // Total documents indexed
	TotalChunks    int64             // Total chunks (same as documents for now)
	Languages      map[string]int64  // Document count per language
	LastIndexedAt  time.Time         // Timestamp of last indexing operation
	IndexSize      int64             // Storage size in bytes
}

// StatsProvider provides statistics about stored data.
type StatsProvider interface {
	// Stats returns current index statistics.
	Stats(ctx context.Context) (*IndexStats, error)
}
