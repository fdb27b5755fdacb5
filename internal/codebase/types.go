// Package codebase fetches, chunks, embeds, and incrementally re-indexes a
// remote repository's contents for retrieval (§4.2).
package codebase

import (
	"context"
	"time"
)

// Chunk represents a unit of indexed content with metadata.
type Chunk struct {
	ID         string            // Unique identifier (file path, chunk type, name, start line)
	Content    string            // Raw text content
	FilePath   string            // Relative path from repo root
	Language   string            // Programming language or "markdown", "text"
	Type       ChunkType         // Function, class, struct, etc.
	StartLine  int               // Starting line number in source file
	EndLine    int               // Ending line number in source file
	Symbols    []string          // Function/struct/interface names declared in this chunk (§3 CodeChunk.Symbols)
	Imports    []string          // Import paths/modules referenced by the containing file (§3 CodeChunk.Imports)
	TokenCount int               // Approximate token count of Content, for embedding budget accounting
	Metadata   map[string]string // Additional metadata (function_name, receiver, type_name, etc.)
	Hash       string            // Content hash (for deduplication/incremental updates)
	IndexedAt  time.Time         // When this chunk was indexed
}

// ChunkType categorizes the semantic type of a chunk.
type ChunkType string

const (
	ChunkTypeFunction  ChunkType = "function"
	ChunkTypeClass     ChunkType = "class"
	ChunkTypeStruct    ChunkType = "struct"
	ChunkTypeEnum      ChunkType = "enum"
	ChunkTypeModule    ChunkType = "module"
	ChunkTypeInterface ChunkType = "interface"
	ChunkTypeComment   ChunkType = "comment"
	ChunkTypeOther     ChunkType = "other"
)

// Chunker splits file content into semantic chunks.
type Chunker interface {
	// Chunk splits content into chunks based on the file type and language.
	Chunk(ctx context.Context, content string, filePath string) ([]Chunk, error)

	// Supports returns true if this chunker handles the given file extension.
	Supports(fileExtension string) bool
}
