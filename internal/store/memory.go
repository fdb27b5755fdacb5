package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prdforge/prdforge/internal/errs"
	"github.com/prdforge/prdforge/pkg/schema"
)

// allowedTransitions is the §4.1 state machine graph. Terminal states accept none.
var allowedTransitions = map[schema.RequestStatus]map[schema.RequestStatus]bool{
	schema.StatusPending: {
		schema.StatusProcessing: true,
		schema.StatusCancelled:  true,
	},
	schema.StatusProcessing: {
		schema.StatusClarificationNeeded: true,
		schema.StatusCompleted:           true,
		schema.StatusFailed:              true,
		schema.StatusCancelled:           true,
	},
	schema.StatusClarificationNeeded: {
		schema.StatusProcessing: true,
		schema.StatusCancelled:  true,
	},
}

// MemoryStore is an in-process, thread-safe Store backed by maps under an
// RWMutex, in the same shape as the pack's other POC-grade in-memory stores.
type MemoryStore struct {
	mu        sync.RWMutex
	requests  map[string]*schema.PRDRequest
	documents map[string]*schema.PRDDocument
	byRequest map[string]string // requestID -> documentID
	mockups   map[string]*schema.MockupUpload
	links     map[string][]string // requestID -> []projectID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:  make(map[string]*schema.PRDRequest),
		documents: make(map[string]*schema.PRDDocument),
		byRequest: make(map[string]string),
		mockups:   make(map[string]*schema.MockupUpload),
		links:     make(map[string][]string),
	}
}

func (s *MemoryStore) CreateRequest(ctx context.Context, req *schema.PRDRequest) error {
	if req.Title == "" {
		return errs.New(errs.Validation, "title is required")
	}
	if req.Priority == schema.PriorityCritical && len(req.Description) < schema.MinCriticalDescriptionLen {
		return errs.New(errs.Validation, "critical priority requires a description of at least 50 characters")
	}
	if len(req.MockupSources) > schema.MaxMockupSources {
		return errs.New(errs.Validation, "at most 20 mockup sources are allowed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return errs.New(errs.Conflict, "request already exists")
	}

	now := time.Now().UTC()
	req.Status = schema.StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now
	req.Version = 1

	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id string) (*schema.PRDRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, errs.New(errs.NotFound, fmt.Sprintf("request %s not found", id))
	}
	cp := *req
	return &cp, nil
}

func (s *MemoryStore) UpdateRequest(ctx context.Context, req *schema.PRDRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.requests[req.ID]
	if !ok {
		return errs.New(errs.NotFound, fmt.Sprintf("request %s not found", req.ID))
	}
	if req.Version != 0 && req.Version != existing.Version {
		return errs.New(errs.Conflict, "request was modified concurrently")
	}

	req.Version = existing.Version + 1
	req.UpdatedAt = time.Now().UTC()
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

// TransitionRequest validates and applies a state transition, updating
// updatedAt/completedAt per the §9 Open Question resolution (the store, not
// the engine, is responsible for keeping these current).
func (s *MemoryStore) TransitionRequest(ctx context.Context, id string, to schema.RequestStatus, reason string) (*schema.PRDRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, errs.New(errs.NotFound, fmt.Sprintf("request %s not found", id))
	}

	if req.Status.Terminal() {
		return nil, errs.New(errs.BusinessRule, fmt.Sprintf("request %s is in terminal state %s", id, req.Status))
	}
	if !allowedTransitions[req.Status][to] {
		return nil, errs.New(errs.BusinessRule, fmt.Sprintf("invalid transition %s -> %s", req.Status, to))
	}

	req.Status = to
	req.FailureReason = reason
	req.UpdatedAt = time.Now().UTC()
	if to.Terminal() {
		now := time.Now().UTC()
		req.CompletedAt = &now
	}
	req.Version++

	cp := *req
	return &cp, nil
}

// AttachDocument stores doc and transitions its request to completed
// atomically under the store's single lock.
func (s *MemoryStore) AttachDocument(ctx context.Context, doc *schema.PRDDocument) error {
	if doc.Title == "" || doc.Content == "" {
		return errs.New(errs.Validation, "document title and content are required")
	}
	if doc.Confidence < schema.LowConfidenceThreshold && !schema.HasTag(doc.Metadata.Tags, schema.NeedsReviewTag) {
		return errs.New(errs.BusinessRule, "low-confidence document missing needs-review tag")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[doc.RequestID]
	if !ok {
		return errs.New(errs.NotFound, fmt.Sprintf("request %s not found", doc.RequestID))
	}
	if req.Status.Terminal() {
		return errs.New(errs.BusinessRule, fmt.Sprintf("request %s is in terminal state %s", doc.RequestID, req.Status))
	}
	if !allowedTransitions[req.Status][schema.StatusCompleted] {
		return errs.New(errs.BusinessRule, fmt.Sprintf("cannot attach document from state %s", req.Status))
	}

	doc.Version = 1
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now().UTC()
	}
	cp := *doc
	s.documents[doc.ID] = &cp
	s.byRequest[doc.RequestID] = doc.ID

	now := time.Now().UTC()
	req.Status = schema.StatusCompleted
	req.GeneratedDocumentID = doc.ID
	req.UpdatedAt = now
	req.CompletedAt = &now
	req.Version++

	return nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, id string) (*schema.PRDDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, errs.New(errs.NotFound, fmt.Sprintf("document %s not found", id))
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) GetDocumentByRequest(ctx context.Context, requestID string) (*schema.PRDDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docID, ok := s.byRequest[requestID]
	if !ok {
		return nil, errs.New(errs.NotFound, fmt.Sprintf("no document for request %s", requestID))
	}
	doc := s.documents[docID]
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) CreateMockupUpload(ctx context.Context, m *schema.MockupUpload) error {
	if m.FileSize > schema.MaxMockupFileSize {
		return errs.New(errs.Validation, "mockup file exceeds the 10 MiB limit")
	}
	if len(m.MimeType) < 6 || m.MimeType[:6] != "image/" {
		return errs.New(errs.Validation, "mockup mime type must begin with image/")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[m.RequestID]
	if !ok {
		return errs.New(errs.NotFound, fmt.Sprintf("request %s not found", m.RequestID))
	}
	_ = req

	count := 0
	for _, existing := range s.mockups {
		if existing.RequestID == m.RequestID {
			count++
		}
	}
	if count >= schema.MaxMockupsPerRequest {
		return errs.New(errs.Validation, "at most 20 mockups are allowed per request")
	}

	now := time.Now().UTC()
	m.UploadedAt = now
	m.ExpiresAt = now.Add(schema.ExtendedMockupTTL)

	cp := *m
	s.mockups[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMockupUpload(ctx context.Context, id string) (*schema.MockupUpload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mockups[id]
	if !ok {
		return nil, errs.New(errs.NotFound, fmt.Sprintf("mockup %s not found", id))
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMockupUploads(ctx context.Context, requestID string) ([]*schema.MockupUpload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*schema.MockupUpload
	for _, m := range s.mockups {
		if m.RequestID == requestID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateMockupUpload(ctx context.Context, m *schema.MockupUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mockups[m.ID]; !ok {
		return errs.New(errs.NotFound, fmt.Sprintf("mockup %s not found", m.ID))
	}
	cp := *m
	s.mockups[m.ID] = &cp
	return nil
}

func (s *MemoryStore) LinkCodebase(ctx context.Context, requestID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[requestID]; !ok {
		return errs.New(errs.NotFound, fmt.Sprintf("request %s not found", requestID))
	}

	for _, existing := range s.links[requestID] {
		if existing == projectID {
			return errs.New(errs.Conflict, "codebase already linked to request")
		}
	}
	s.links[requestID] = append(s.links[requestID], projectID)
	return nil
}

func (s *MemoryStore) ListCodebaseLinks(ctx context.Context, requestID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.links[requestID]))
	copy(out, s.links[requestID])
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
