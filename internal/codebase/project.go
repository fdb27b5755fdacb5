package codebase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prdforge/prdforge/internal/embedding"
	"github.com/prdforge/prdforge/internal/errs"
	"github.com/prdforge/prdforge/internal/vectorstore"
	"github.com/prdforge/prdforge/pkg/schema"
)

const (
	// DefaultBatchSize is the §4.2 content-fetch batch size.
	DefaultBatchSize = 10
	// MinBatchDelay is the §4.2 minimum inter-batch delay.
	MinBatchDelay = 500 * time.Millisecond
	fetchMaxRetries = schema.DefaultMaxRetries
	fetchBaseBackoff = 200 * time.Millisecond
)

// ProjectStore persists CodebaseProjects, keyed by ID and by the
// (repositoryURL, repositoryBranch) uniqueness invariant of §3, in the same
// mutex-guarded map shape as store.MemoryStore.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[string]*schema.CodebaseProject
	byRepo   map[string]string // "url\x00branch" -> projectID
}

// NewProjectStore creates an empty ProjectStore.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		projects: make(map[string]*schema.CodebaseProject),
		byRepo:   make(map[string]string),
	}
}

func repoKey(url, branch string) string { return url + "\x00" + branch }

// findByRepo returns the existing project for (url, branch), if any.
func (s *ProjectStore) findByRepo(url, branch string) (*schema.CodebaseProject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRepo[repoKey(url, branch)]
	if !ok {
		return nil, false
	}
	p := *s.projects[id]
	return &p, true
}

func (s *ProjectStore) create(p *schema.CodebaseProject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.projects[p.ID] = &cp
	s.byRepo[repoKey(p.RepositoryURL, p.RepositoryBranch)] = p.ID
}

func (s *ProjectStore) get(id string) (*schema.CodebaseProject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "codebase project not found")
	}
	cp := *p
	return &cp, nil
}

func (s *ProjectStore) update(id string, mutate func(*schema.CodebaseProject)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return
	}
	mutate(p)
	p.UpdatedAt = time.Now().UTC()
}

// Service materializes a CodebaseProject (§4.2) by fetching a repository's
// tree from a RepositoryHost, chunking and embedding each blob, and
// persisting the result, tracked by an in-memory IndexingJob. It implements
// engine.ProjectLookup via GetProject.
type Service struct {
	Host      RepositoryHost
	Projects  *ProjectStore
	Vectors   vectorstore.VectorStore
	Embedder  embedding.Embedder
	Chunkers  []Chunker
	Queue     Queue
	Locks     *ProjectLock
	Log       *slog.Logger

	jobsMu sync.Mutex
	jobs   map[string]*schema.IndexingJob // projectID -> most recent job

	merkleMu sync.Mutex
	merkles  map[string][]MerkleLeaf // projectID -> leaves of the last indexed tree
}

// NewService constructs a Service wired to queue for async job execution.
// chunkers defaults to a single CodeChunker with the teacher's default sizes
// when nil; queue defaults to an in-process WorkerPool when nil.
func NewService(host RepositoryHost, vectors vectorstore.VectorStore, embedder embedding.Embedder, chunkers []Chunker, queue Queue, log *slog.Logger) *Service {
	if chunkers == nil {
		chunkers = []Chunker{NewCodeChunker(2000, 200)}
	}
	if log == nil {
		log = slog.Default()
	}
	if queue == nil {
		queue = NewWorkerPool(log)
	}
	s := &Service{
		Host:     host,
		Projects: NewProjectStore(),
		Vectors:  vectors,
		Embedder: embedder,
		Chunkers: chunkers,
		Queue:    queue,
		Locks:    NewProjectLock(),
		Log:      log,
		jobs:     make(map[string]*schema.IndexingJob),
		merkles:  make(map[string][]MerkleLeaf),
	}
	queue.SetHandler(s.handleJob)
	return s
}

// handleJob is the Queue handler: it acquires the project's lock for the
// duration of the run and releases it unconditionally on return.
func (s *Service) handleJob(ctx context.Context, job IndexJob) {
	if !s.Locks.TryLock(job.ProjectID) {
		s.Log.Warn("dropping index job, project already has one running", "project_id", job.ProjectID, "job_id", job.JobID)
		return
	}
	defer s.Locks.Unlock(job.ProjectID)

	jobType := schema.JobInitialIndex
	if job.Incremental {
		jobType = schema.JobReindex
	}
	s.runIndexJob(ctx, job.Owner, job.Repo, job.Branch, job.AccessToken, job.ProjectID, job.JobID, jobType)
}

// GetProject satisfies engine.ProjectLookup.
func (s *Service) GetProject(ctx context.Context, id string) (*schema.CodebaseProject, error) {
	return s.Projects.get(id)
}

// IndexRepository materializes a CodebaseProject for (repositoryURL, branch).
// On a dedup hit the existing project is returned unmodified and no job is
// scheduled, per §4.2. Otherwise a project is created in indexingStatus
// pending and an initial_index job is started asynchronously.
func (s *Service) IndexRepository(ctx context.Context, repositoryURL, branch, accessToken string) (*schema.CodebaseProject, error) {
	owner, repo, err := ParseRepositoryURL(repositoryURL)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		return nil, errs.New(errs.Validation, "branch is required")
	}

	if existing, ok := s.Projects.findByRepo(repositoryURL, branch); ok {
		return existing, nil
	}

	now := time.Now().UTC()
	project := &schema.CodebaseProject{
		ID:               uuid.NewString(),
		RepositoryURL:    repositoryURL,
		RepositoryBranch: branch,
		RepositoryType:   "github",
		IndexingStatus:   schema.IndexingPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.Projects.create(project)

	job := &schema.IndexingJob{
		ID:         uuid.NewString(),
		ProjectID:  project.ID,
		JobType:    schema.JobInitialIndex,
		Status:     schema.JobQueued,
		MaxRetries: schema.DefaultMaxRetries,
	}
	s.setJob(job)

	if err := s.Queue.Submit(ctx, IndexJob{
		JobID:       job.ID,
		ProjectID:   project.ID,
		Owner:       owner,
		Repo:        repo,
		Branch:      branch,
		AccessToken: accessToken,
	}); err != nil {
		return nil, errs.Wrap(errs.ProcessingFailed, "submit indexing job", err)
	}

	out := *project
	return &out, nil
}

// Reindex queues a re_index job that recomputes the changed set against the
// project's last indexed tree and re-chunks/re-embeds only those paths, per
// the §4.2 incremental update rule. The request is rejected with a
// businessRule error while the project's most recent job is still running;
// it is not queued behind that job.
func (s *Service) Reindex(ctx context.Context, projectID, accessToken string) (*schema.IndexingJob, error) {
	project, err := s.Projects.get(projectID)
	if err != nil {
		return nil, err
	}
	if s.jobRunning(projectID) {
		return nil, errs.New(errs.BusinessRule, "an indexing job is already running for this project")
	}

	owner, repo, err := ParseRepositoryURL(project.RepositoryURL)
	if err != nil {
		return nil, err
	}

	job := &schema.IndexingJob{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		JobType:    schema.JobReindex,
		Status:     schema.JobQueued,
		MaxRetries: schema.DefaultMaxRetries,
	}
	s.setJob(job)
	if err := s.Queue.Submit(ctx, IndexJob{
		JobID:       job.ID,
		ProjectID:   projectID,
		Owner:       owner,
		Repo:        repo,
		Branch:      project.RepositoryBranch,
		AccessToken: accessToken,
		Incremental: true,
	}); err != nil {
		return nil, errs.Wrap(errs.ProcessingFailed, "submit indexing job", err)
	}

	out := *job
	return &out, nil
}

func (s *Service) setJob(j *schema.IndexingJob) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	cp := *j
	s.jobs[j.ProjectID] = &cp
}

// Job returns the most recent IndexingJob for projectID, if any.
func (s *Service) Job(projectID string) (*schema.IndexingJob, bool) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	j, ok := s.jobs[projectID]
	if !ok {
		return nil, false
	}
	cp := *j
	return &cp, true
}

func (s *Service) jobRunning(projectID string) bool {
	j, ok := s.Job(projectID)
	return ok && j.Status == schema.JobRunning
}

func (s *Service) updateJob(projectID string, mutate func(*schema.IndexingJob)) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	j, ok := s.jobs[projectID]
	if !ok {
		return
	}
	mutate(j)
}

// runIndexJob executes one indexing job end to end: tree fetch, Merkle build,
// diff (for incremental jobs), batched content fetch, chunk, embed, persist.
// Branch resolution and tree fetch retry transient failures with exponential
// backoff up to maxRetries; authentication failures, invalid URLs, and
// missing branches are fatal. Batched content fetches are not retried: files
// missing from a batch's result are logged and skipped, and an
// authentication or validation error from the content fetch fails the job.
func (s *Service) runIndexJob(ctx context.Context, owner, repo, branch, token, projectID, jobID string, jobType schema.JobType) {
	start := time.Now().UTC()
	s.updateJob(projectID, func(j *schema.IndexingJob) {
		j.Status = schema.JobRunning
		j.StartedAt = start
	})
	s.Projects.update(projectID, func(p *schema.CodebaseProject) {
		p.IndexingStatus = schema.IndexingRunning
	})

	if err := s.index(ctx, owner, repo, branch, token, projectID, jobID, jobType); err != nil {
		s.Log.Error("indexing job failed", "project_id", projectID, "job_id", jobID, "error", err)
		completed := time.Now().UTC()
		s.updateJob(projectID, func(j *schema.IndexingJob) {
			j.Status = schema.JobFailed
			j.Error = err.Error()
			j.CompletedAt = &completed
		})
		s.Projects.update(projectID, func(p *schema.CodebaseProject) {
			p.IndexingStatus = schema.IndexingFailed
		})
		return
	}

	completed := time.Now().UTC()
	s.updateJob(projectID, func(j *schema.IndexingJob) {
		j.Status = schema.JobCompleted
		j.CompletedAt = &completed
	})
	s.Projects.update(projectID, func(p *schema.CodebaseProject) {
		p.IndexingStatus = schema.IndexingCompleted
		p.IndexingProgress = 100
	})
}

func (s *Service) index(ctx context.Context, owner, repo, branch, token, projectID, jobID string, jobType schema.JobType) error {
	sha, err := withRetry(ctx, func() (string, error) {
		return s.Host.ResolveBranchSHA(ctx, owner, repo, branch, token)
	})
	if err != nil {
		return err
	}

	entries, err := withRetry(ctx, func() ([]TreeEntry, error) {
		return s.Host.FetchTree(ctx, owner, repo, sha, token)
	})
	if err != nil {
		return err
	}

	blobs := make([]FileNode, 0, len(entries))
	for _, e := range entries {
		if e.Type != "blob" {
			continue
		}
		blobs = append(blobs, FileNode{Path: e.Path, SHA: e.SHA, Size: e.Size})
	}

	tree := BuildMerkleTree(blobs)

	toProcess := blobs
	if jobType != schema.JobInitialIndex {
		s.merkleMu.Lock()
		previous := s.merkles[projectID]
		s.merkleMu.Unlock()
		changed := Diff(previous, tree.Leaves)
		changedSet := make(map[string]bool, len(changed))
		for _, p := range changed {
			changedSet[p] = true
		}
		filtered := make([]FileNode, 0, len(changed))
		for _, b := range blobs {
			if changedSet[b.Path] {
				filtered = append(filtered, b)
			}
		}
		toProcess = filtered
	}

	languages, err := s.Host.FetchLanguages(ctx, owner, repo, token)
	if err != nil {
		s.Log.Warn("fetch languages failed, continuing without", "project_id", projectID, "error", err)
		languages = nil
	}

	s.Projects.update(projectID, func(p *schema.CodebaseProject) {
		p.MerkleRootHash = tree.RootHash()
		p.TotalFiles = len(blobs)
		p.Languages = languages
	})

	filesToProcess := len(toProcess)
	s.updateJob(projectID, func(j *schema.IndexingJob) {
		j.FilesToProcess = filesToProcess
	})

	var filesProcessed, chunksCreated, embeddingsGenerated int
	embeddedByHash := make(map[string]embedding.Vector)
	var embedMu sync.Mutex

	for batchStart := 0; batchStart < len(toProcess); batchStart += DefaultBatchSize {
		if batchStart > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(MinBatchDelay):
			}
		}
		end := batchStart + DefaultBatchSize
		if end > len(toProcess) {
			end = len(toProcess)
		}
		batch := toProcess[batchStart:end]

		paths := make([]string, len(batch))
		for i, b := range batch {
			paths[i] = b.Path
		}
		contents, fetchErr := s.Host.BatchFetchContents(ctx, owner, repo, paths, branch, token)
		if fetchErr != nil && !IsTransient(fetchErr) {
			// Authentication/validation failures abort the whole job.
			if errs.Is(fetchErr, errs.Unauthorized) || errs.Is(fetchErr, errs.Validation) {
				return fetchErr
			}
		}

		var docs []vectorstore.Document
		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, node := range batch {
			content, ok := contents[node.Path]
			if !ok {
				// Per-file failure: logged and skipped, batch continues.
				s.Log.Warn("skipping unfetchable file", "project_id", projectID, "path", node.Path)
				continue
			}
			wg.Add(1)
			go func(node FileNode, content string) {
				defer wg.Done()
				chunks := s.chunkFile(ctx, node.Path, content)
				for _, c := range chunks {
					vec, cached := embeddedByHash[c.Hash]
					if !cached {
						emb, err := s.Embedder.Embed(ctx, c.Content)
						if err != nil {
							s.Log.Warn("embedding failed, skipping chunk", "project_id", projectID, "path", node.Path, "error", err)
							continue
						}
						vec = emb.Vector
						embedMu.Lock()
						embeddedByHash[c.Hash] = vec
						embedMu.Unlock()
					}
					doc := chunkToProjectDocument(projectID, c, vec)
					mu.Lock()
					docs = append(docs, doc)
					mu.Unlock()
				}
			}(node, content)
		}
		wg.Wait()

		if len(docs) > 0 {
			if err := s.Vectors.UpsertBatch(ctx, docs); err != nil {
				return errs.Wrap(errs.ProcessingFailed, "persist chunk batch", err)
			}
		}

		filesProcessed += len(batch)
		chunksCreated += len(docs)
		embeddingsGenerated = len(embeddedByHash)
		progress := schema.Progress(filesProcessed, filesToProcess)
		s.updateJob(projectID, func(j *schema.IndexingJob) {
			j.FilesProcessed = filesProcessed
			j.ChunksCreated = chunksCreated
			j.EmbeddingsGenerated = embeddingsGenerated
			j.Progress = progress
		})
		s.Projects.update(projectID, func(p *schema.CodebaseProject) {
			p.IndexedFiles = filesProcessed
			p.TotalChunks = p.TotalChunks + len(docs)
			p.IndexingProgress = progress
		})
	}

	s.merkleMu.Lock()
	s.merkles[projectID] = tree.Leaves
	s.merkleMu.Unlock()

	return nil
}

// chunkFile runs the first supporting Chunker over content.
func (s *Service) chunkFile(ctx context.Context, path, content string) []Chunk {
	ext := extOf(path)
	for _, c := range s.Chunkers {
		if !c.Supports(ext) {
			continue
		}
		chunks, err := c.Chunk(ctx, content, path)
		if err != nil {
			s.Log.Warn("chunk failed", "path", path, "error", err)
			return nil
		}
		return chunks
	}
	return nil
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[idx:]
}

// chunkToProjectDocument converts a chunk into the vectorstore.Document shape
// internal/rag.Retriever expects. The fields CodeChunk carries natively
// (project, path, language, type, position, hash) become typed Document
// fields; the symbol and import hints that aren't part of vectorstore's
// typed shape go into Metadata, preferring the chunk's own Symbols/Imports
// when the chunker populated them and falling back to Metadata-derived
// heuristics for chunks built before those fields existed.
func chunkToProjectDocument(projectID string, c Chunk, vec embedding.Vector) vectorstore.Document {
	symbol := firstSymbol(c)
	imports := c.Imports
	if imports == nil {
		imports = extractImports(c.Language, c.Content)
	}
	return vectorstore.Document{
		ID:          projectID + ":" + c.ID,
		ProjectID:   projectID,
		FilePath:    c.FilePath,
		Language:    c.Language,
		ChunkType:   string(c.Type),
		ContentHash: c.Hash,
		StartLine:   c.StartLine,
		EndLine:     c.EndLine,
		Content:     c.Content,
		Vector:      vec,
		Metadata: map[string]interface{}{
			"first_symbol": symbol,
			"imports":      imports,
			"token_count":  c.TokenCount,
		},
		CreatedAt: c.IndexedAt,
		UpdatedAt: c.IndexedAt,
	}
}

func firstSymbol(c Chunk) string {
	if len(c.Symbols) > 0 && c.Symbols[0] != "" {
		return c.Symbols[0]
	}
	for _, key := range []string{"function_name", "type_name", "interface_name"} {
		if v, ok := c.Metadata[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

var (
	goImportPattern     = regexp.MustCompile(`(?m)^\s*"([^"]+)"\s*$`)
	pyImportPattern     = regexp.MustCompile(`(?m)^\s*(?:import|from)\s+([\w.]+)`)
	jsImportPattern     = regexp.MustCompile(`(?m)(?:import\s+.*?from\s+|require\()\s*['"]([^'"]+)['"]`)
)

// extractImports is a best-effort, closed-language heuristic: module
// references are inferred where a declaration is recognizable, per §4.2's
// "when inferable" qualifier. Anything else returns no imports rather than
// guessing.
func extractImports(language, content string) []string {
	var pattern *regexp.Regexp
	switch strings.ToLower(language) {
	case "go":
		pattern = goImportPattern
	case "python":
		pattern = pyImportPattern
	case "javascript", "typescript":
		pattern = jsImportPattern
	default:
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, m := range pattern.FindAllStringSubmatch(content, -1) {
		imp := m[1]
		if imp == "" || seen[imp] {
			continue
		}
		seen[imp] = true
		out = append(out, imp)
	}
	sort.Strings(out)
	return out
}

// withRetry retries a transient-failing operation with exponential backoff up
// to the §4.2 default maxRetries. Non-transient errors (auth, validation)
// return immediately.
func withRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		v, err := op()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return zero, err
		}
		if attempt == fetchMaxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(fetchBaseBackoff << attempt):
		}
	}
	return zero, fmt.Errorf("exhausted retries: %w", lastErr)
}
