package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prdforge/prdforge/internal/engine"
	"github.com/prdforge/prdforge/internal/observability"
)

// DefaultDeadline is the §5 default request deadline enforced around each
// generation task the session drives.
const DefaultDeadline = 30 * time.Second

// phaseProgress names the progress checkpoint §4.8 assigns to each engine
// phase that has a client-visible equivalent. PhaseGate has none: it never
// does observable work, it only decides whether to stop for clarification.
var phaseProgress = map[engine.PhaseName]string{
	engine.PhaseAnalyze:  "analyze",
	engine.PhaseContext:  "retrieve",
	engine.PhaseGenerate: "provider-selected",
}

// Registry rejects concurrent sessions against the same request, per §4.8.
type Registry struct {
	mu     sync.Mutex
	active map[string]bool
}

// NewRegistry constructs an empty session registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]bool)}
}

func (r *Registry) acquire(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[requestID] {
		return false
	}
	r.active[requestID] = true
	return true
}

func (r *Registry) release(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, requestID)
}

// Session is one full-duplex channel bound to a single request. It owns the
// connection for its lifetime: one writer goroutine drains an internal
// channel into the socket (mirroring the single-writer discipline of the
// teacher's protocol.Server.Serve loop, here made explicit since reads and
// engine-driven progress now happen concurrently instead of synchronously),
// while the calling goroutine reads client frames and drives generation.
type Session struct {
	requestID string
	conn      *websocket.Conn
	engine    *engine.Engine
	registry  *Registry
	logger    *observability.Logger

	writeCh chan Frame
	closed  chan struct{}

	busyMu sync.Mutex
	busy   bool
}

// New constructs a Session bound to requestID over conn. The caller has
// already established that requestID refers to a request accepting work.
func New(requestID string, conn *websocket.Conn, eng *engine.Engine, registry *Registry, logger *observability.Logger) *Session {
	return &Session{
		requestID: requestID,
		conn:      conn,
		engine:    eng,
		registry:  registry,
		logger:    logger,
		writeCh:   make(chan Frame, 16),
		closed:    make(chan struct{}),
	}
}

// Serve runs the session until the client disconnects or ctx is cancelled.
// Returns an error only when the concurrent-session guard rejects the
// session outright; a normal disconnect returns nil.
func (s *Session) Serve(ctx context.Context) error {
	if !s.registry.acquire(s.requestID) {
		_ = s.conn.WriteJSON(errorFrame(fmt.Sprintf("a session is already active for request %s", s.requestID)))
		return fmt.Errorf("session for request %s already active", s.requestID)
	}
	defer s.registry.release(s.requestID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	writerDone := make(chan struct{})
	go s.writeLoop(writerDone)
	defer func() {
		wg.Wait()
		close(s.writeCh)
		<-writerDone
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil
		}

		var in Frame
		if err := json.Unmarshal(data, &in); err != nil {
			s.send(errorFrame("malformed frame: " + err.Error()))
			continue
		}

		switch in.Type {
		case FrameStartGeneration:
			if in.Command == nil || in.Command.RequestID != s.requestID {
				s.send(errorFrame("start_generation.command.request_id must match the session's request"))
				continue
			}
			s.startGeneration(ctx, &wg, nil)

		case FrameClarificationAnswers:
			answers := make([]engine.AcceptedAnswer, len(in.Answers))
			for i, a := range in.Answers {
				answers[i] = engine.AcceptedAnswer{Question: a.Question, Answer: a.Answer}
			}
			s.startGeneration(ctx, &wg, answers)

		case FrameResponse:
			// A free-form answer to a mid-generation context question (§6's
			// Context Request Port). That port is not wired into the engine
			// yet, so there is nothing to feed it to; accept and drop.
			s.logger.InfoContext(ctx, "received response frame with no mid-generation context port to deliver it to",
				"request_id", s.requestID)

		default:
			s.send(errorFrame("unknown frame type: " + string(in.Type)))
		}
	}
}

// startGeneration runs one Generate call in its own goroutine so the read
// loop keeps servicing the socket (and can observe an early disconnect)
// while generation is in flight. A session drives at most one generation
// task at a time; a start arriving while one is already running is rejected.
func (s *Session) startGeneration(ctx context.Context, wg *sync.WaitGroup, answers []engine.AcceptedAnswer) {
	s.busyMu.Lock()
	if s.busy {
		s.busyMu.Unlock()
		s.send(errorFrame("generation already in progress for this session"))
		return
	}
	s.busy = true
	s.busyMu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			s.busyMu.Lock()
			s.busy = false
			s.busyMu.Unlock()
		}()
		s.runGeneration(ctx, answers)
	}()
}

func (s *Session) runGeneration(ctx context.Context, answers []engine.AcceptedAnswer) {
	deadlineCtx, cancel := context.WithTimeout(ctx, DefaultDeadline)
	defer cancel()

	opts := engine.GenerateOptions{
		AcceptedAnswers: answers,
		OnPhase: func(p engine.PhaseName) {
			if msg, ok := phaseProgress[p]; ok {
				s.send(progressFrame(msg))
			}
		},
	}

	outcome, err := s.engine.Generate(deadlineCtx, s.requestID, opts)
	if err != nil {
		// A cancelled or timed-out context means the client is gone or the
		// deadline wrapper already tore things down; there's no one left to
		// tell. Anything else is a genuine failure worth surfacing.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		s.send(errorFrame(err.Error()))
		return
	}

	if outcome.NeedsClarification {
		questions := make([]string, len(outcome.Clarifications))
		for i, c := range outcome.Clarifications {
			questions[i] = c.Question
		}
		s.send(clarificationNeededFrame(questions))
		return
	}

	// Generate returns only the fully persisted document rather than
	// streaming sections as they're written, so sections are replayed here
	// in order — preserving the §5 ordering guarantee (section frames
	// ascending by order, generation_complete strictly last) even though the
	// underlying engine call is a single blocking round trip.
	for _, sec := range outcome.Document.Sections {
		s.send(progressFrame(fmt.Sprintf("section-%d", sec.Order)))
		s.send(sectionFrame(sec))
	}
	s.send(generationCompleteFrame(outcome.Document))
}

func (s *Session) send(f Frame) {
	select {
	case s.writeCh <- f:
	case <-s.closed:
	}
}

func (s *Session) writeLoop(done chan struct{}) {
	defer close(done)
	defer close(s.closed)
	for f := range s.writeCh {
		if err := s.conn.WriteJSON(f); err != nil {
			s.logger.WarnContext(context.Background(), "session write failed",
				"request_id", s.requestID, "error", err)
			return
		}
	}
}
