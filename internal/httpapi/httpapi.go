// Package httpapi exposes the Document Store and engine behind the thin REST
// surface named in §6: JSON bodies, snake_case keys, the closed error
// taxonomy of §7 mapped to transport status codes.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/prdforge/prdforge/internal/codebase"
	"github.com/prdforge/prdforge/internal/engine"
	"github.com/prdforge/prdforge/internal/errs"
	"github.com/prdforge/prdforge/internal/export"
	"github.com/prdforge/prdforge/internal/mockup"
	"github.com/prdforge/prdforge/internal/observability"
	"github.com/prdforge/prdforge/internal/session"
	"github.com/prdforge/prdforge/internal/store"
	"github.com/prdforge/prdforge/pkg/schema"
)

// Server wires the Store, engine, and mockup analyzer behind net/http
// handlers. It holds no transport concerns of its own (TLS, rate limiting,
// CORS) — those wrap the handler returned by Mux in cmd/prdforge/main.go.
type Server struct {
	Store    store.Store
	Engine   *engine.Engine
	Mockups  *mockup.Analyzer
	Sessions *session.Registry
	Codebase *codebase.Service
	Logger   *observability.Logger

	upgrader websocket.Upgrader
}

// NewServer constructs a Server. Sessions and codebases may be nil to disable
// the websocket generation endpoint and the repository-indexing endpoints
// respectively.
func NewServer(st store.Store, eng *engine.Engine, mockups *mockup.Analyzer, sessions *session.Registry, codebases *codebase.Service, logger *observability.Logger) *Server {
	return &Server{
		Store:    st,
		Engine:   eng,
		Mockups:  mockups,
		Sessions: sessions,
		Codebase: codebases,
		Logger:   logger,
	}
}

// Mux builds the routed handler. Go 1.22+ pattern routing gives each
// method+path its own registration instead of a method switch per handler.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /requests", s.createRequest)
	mux.HandleFunc("GET /requests/{id}", s.getRequest)
	mux.HandleFunc("POST /requests/{id}/generate", s.generate)
	mux.HandleFunc("GET /documents/{id}", s.getDocument)
	mux.HandleFunc("GET /documents/{id}/export", s.exportDocument)
	mux.HandleFunc("POST /mockups", s.uploadMockup)
	mux.HandleFunc("GET /ws/requests/{id}", s.serveSession)
	mux.HandleFunc("POST /codebases/index", s.indexCodebase)
	mux.HandleFunc("GET /codebases/{id}", s.getCodebase)
	mux.HandleFunc("GET /health", s.health)
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// createRequestBody mirrors schema.PRDRequest's externally-settable fields;
// id/status/timestamps are server-assigned.
type createRequestBody struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Priority          string   `json:"priority"`
	RequesterID       string   `json:"requester_id"`
	RequesterEmail    string   `json:"requester_email,omitempty"`
	MockupSources     []string `json:"mockup_sources,omitempty"`
	PreferredProvider string   `json:"preferred_provider,omitempty"`
}

func (s *Server) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}

	req := &schema.PRDRequest{
		ID:                uuid.NewString(),
		Title:             body.Title,
		Description:       body.Description,
		Priority:          schema.Priority(body.Priority),
		Requester:         schema.Requester{ID: body.RequesterID, Email: body.RequesterEmail},
		MockupSources:     body.MockupSources,
		PreferredProvider: body.PreferredProvider,
	}

	if err := s.Store.CreateRequest(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.Store.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type generateBody struct {
	Answers []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"accepted_answers,omitempty"`
}

// generateOutcome is the wire shape for a synchronous generation call: either
// a persisted document, or the clarification questions still outstanding.
type generateOutcome struct {
	Document           *schema.PRDDocument `json:"document,omitempty"`
	NeedsClarification bool                `json:"needs_clarification"`
	Questions          []string            `json:"questions,omitempty"`
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")

	var body generateBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, errs.New(errs.Validation, "malformed request body"))
			return
		}
	}

	answers := make([]engine.AcceptedAnswer, len(body.Answers))
	for i, a := range body.Answers {
		answers[i] = engine.AcceptedAnswer{Question: a.Question, Answer: a.Answer}
	}

	outcome, err := s.Engine.Generate(r.Context(), requestID, engine.GenerateOptions{AcceptedAnswers: answers})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := generateOutcome{NeedsClarification: outcome.NeedsClarification}
	if outcome.NeedsClarification {
		resp.Questions = make([]string, len(outcome.Clarifications))
		for i, c := range outcome.Clarifications {
			resp.Questions[i] = c.Question
		}
	} else {
		resp.Document = outcome.Document
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Store.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// exportDocument renders a generated document in the format named by the
// ?format= query parameter (default markdown), per §6.
func (s *Server) exportDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Store.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	format := export.FormatMarkdown
	if f := r.URL.Query().Get("format"); f != "" {
		format = export.Format(f)
	}

	body, mime, err := export.Render(doc, format)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

const maxMockupBody = 10 << 20 // 10 MiB, the §8 fileSize invariant.

func (s *Server) uploadMockup(w http.ResponseWriter, r *http.Request) {
	if s.Mockups == nil {
		writeError(w, errs.New(errs.ProcessingFailed, "mockup analysis is not configured"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMockupBody+1<<20)
	if err := r.ParseMultipartForm(maxMockupBody); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed multipart upload"))
		return
	}

	requestID := r.FormValue("request_id")
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errs.New(errs.Validation, "file field is required"))
		return
	}
	defer file.Close()

	data := make([]byte, header.Size)
	if _, err := io.ReadFull(file, data); err != nil {
		writeError(w, errs.Wrap(errs.ProcessingFailed, "read upload", err))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	upload, err := s.Mockups.Upload(r.Context(), requestID, header.Filename, mimeType, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, upload)
}

func (s *Server) serveSession(w http.ResponseWriter, r *http.Request) {
	if s.Sessions == nil {
		writeError(w, errs.New(errs.ProcessingFailed, "interactive sessions are not configured"))
		return
	}

	requestID := r.PathValue("id")
	if _, err := s.Store.GetRequest(r.Context(), requestID); err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.WarnContext(r.Context(), "websocket upgrade failed", "request_id", requestID, "error", err)
		return
	}

	sess := session.New(requestID, conn, s.Engine, s.Sessions, s.Logger)
	if err := sess.Serve(r.Context()); err != nil {
		s.Logger.InfoContext(r.Context(), "session rejected", "request_id", requestID, "error", err)
	}
	_ = conn.Close()
}

type indexCodebaseBody struct {
	RepositoryURL string `json:"repository_url"`
	Branch        string `json:"branch"`
	AccessToken   string `json:"access_token,omitempty"`
}

func (s *Server) indexCodebase(w http.ResponseWriter, r *http.Request) {
	if s.Codebase == nil {
		writeError(w, errs.New(errs.ProcessingFailed, "codebase indexing is not configured"))
		return
	}

	var body indexCodebaseBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body"))
		return
	}

	project, err := s.Codebase.IndexRepository(r.Context(), body.RepositoryURL, body.Branch, body.AccessToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, project)
}

func (s *Server) getCodebase(w http.ResponseWriter, r *http.Request) {
	if s.Codebase == nil {
		writeError(w, errs.New(errs.ProcessingFailed, "codebase indexing is not configured"))
		return
	}

	project, err := s.Codebase.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the §6 wire shape for error responses.
type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	body := errorBody{}
	body.Error.Code = errs.Code(kind)
	body.Error.Message = err.Error()
	body.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, errs.HTTPStatus(kind), body)
}
