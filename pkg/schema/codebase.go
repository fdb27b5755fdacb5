package schema

import "time"

// IndexingStatus is the closed enum of CodebaseProject indexing states.
type IndexingStatus string

const (
	IndexingPending   IndexingStatus = "pending"
	IndexingRunning   IndexingStatus = "indexing"
	IndexingCompleted IndexingStatus = "completed"
	IndexingFailed    IndexingStatus = "failed"
)

// ChunkType is the closed enum of CodeChunk syntactic kinds.
type ChunkType string

const (
	ChunkFunction  ChunkType = "function"
	ChunkClass     ChunkType = "class"
	ChunkStruct    ChunkType = "struct"
	ChunkEnum      ChunkType = "enum"
	ChunkModule    ChunkType = "module"
	ChunkInterface ChunkType = "interface"
	ChunkComment   ChunkType = "comment"
	ChunkOther     ChunkType = "other"
)

// CodebaseProject is a uniquely indexed (repositoryUrl, repositoryBranch) pair.
type CodebaseProject struct {
	ID                string            `json:"id"`
	RepositoryURL     string            `json:"repository_url"`
	RepositoryBranch  string            `json:"repository_branch"`
	RepositoryType    string            `json:"repository_type"`
	MerkleRootHash    string            `json:"merkle_root_hash,omitempty"`
	TotalFiles        int               `json:"total_files"`
	IndexedFiles      int               `json:"indexed_files"`
	TotalChunks       int               `json:"total_chunks"`
	IndexingStatus    IndexingStatus    `json:"indexing_status"`
	IndexingProgress  float64           `json:"indexing_progress"`
	Languages         map[string]int64  `json:"languages,omitempty"`
	Frameworks        []string          `json:"frameworks,omitempty"`
	ArchitecturePatterns []string       `json:"architecture_patterns,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// CodeFile is one file tracked within a CodebaseProject.
type CodeFile struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	FilePath   string `json:"file_path"`
	FileHash   string `json:"file_hash"`
	FileSize   int64  `json:"file_size"`
	Language   string `json:"language,omitempty"`
	IsParsed   bool   `json:"is_parsed"`
	ParseError string `json:"parse_error,omitempty"`
}

// CodeChunk is one semantically coherent slice of a CodeFile.
type CodeChunk struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	FileID      string    `json:"file_id"`
	FilePath    string    `json:"file_path"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	ChunkType   ChunkType `json:"chunk_type"`
	Language    string    `json:"language"`
	Symbols     []string  `json:"symbols,omitempty"`
	Imports     []string  `json:"imports,omitempty"`
	StartLine   int       `json:"start_line"`
	EndLine     int       `json:"end_line"`
	TokenCount  int       `json:"token_count"`
}

// DefaultEmbeddingModel is the default embedding model name (§3).
const DefaultEmbeddingModel = "text-embedding-3-small"

// EmbeddingDimensions is the fixed vector width required by §3.
const EmbeddingDimensions = 1536

// CodeEmbedding is 1:1 with a CodeChunk.
type CodeEmbedding struct {
	ChunkID          string    `json:"chunk_id"`
	Vector           []float32 `json:"vector"`
	Model            string    `json:"model"`
	EmbeddingVersion int       `json:"embedding_version"`
}

// MerkleNode is one node of a project's content-address tree.
type MerkleNode struct {
	NodeHash       string  `json:"node_hash"`
	ProjectID      string  `json:"project_id"`
	NodePath       string  `json:"node_path,omitempty"`
	IsLeaf         bool    `json:"is_leaf"`
	ParentHash     string  `json:"parent_hash,omitempty"`
	LeftChildHash  string  `json:"left_child_hash,omitempty"`
	RightChildHash string  `json:"right_child_hash,omitempty"`
	FileID         string  `json:"file_id,omitempty"`
}

// JobType is the closed enum of IndexingJob kinds.
type JobType string

const (
	JobInitialIndex      JobType = "initial_index"
	JobIncrementalUpdate JobType = "incremental_update"
	JobReindex           JobType = "re_index"
)

// JobStatus is the closed enum of IndexingJob states.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// DefaultMaxRetries is the invariant retry ceiling for indexing jobs.
const DefaultMaxRetries = 3

// IndexingJob tracks progress of one indexing run against a project.
type IndexingJob struct {
	ID                  string    `json:"id"`
	ProjectID           string    `json:"project_id"`
	JobType             JobType   `json:"job_type"`
	Status              JobStatus `json:"status"`
	FilesToProcess      int       `json:"files_to_process"`
	FilesProcessed      int       `json:"files_processed"`
	ChunksCreated       int       `json:"chunks_created"`
	EmbeddingsGenerated int       `json:"embeddings_generated"`
	Progress            float64   `json:"progress"`
	RetryCount          int       `json:"retry_count"`
	MaxRetries          int       `json:"max_retries"`
	StartedAt           time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	Error               string    `json:"error,omitempty"`
}

// Progress computes the monotonic job progress percentage.
func Progress(processed, total int) float64 {
	if total <= 0 {
		total = 1
	}
	p := 100 * float64(processed) / float64(total)
	if p > 100 {
		p = 100
	}
	return p
}

// PRDCodebaseLink is a many-to-many join between a PRDRequest and a CodebaseProject.
type PRDCodebaseLink struct {
	PRDRequestID      string `json:"prd_request_id"`
	CodebaseProjectID string `json:"codebase_project_id"`
}
