package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/prdforge/prdforge/internal/engine"
	"github.com/prdforge/prdforge/internal/mockup"
	"github.com/prdforge/prdforge/internal/observability"
	"github.com/prdforge/prdforge/internal/provider"
	"github.com/prdforge/prdforge/internal/store"
	"github.com/prdforge/prdforge/pkg/schema"
)

var upgrader = websocket.Upgrader{}

func newTestServer(t *testing.T, requestID string, eng *engine.Engine, registry *Registry) (*httptest.Server, string) {
	t.Helper()
	logger := observability.NewLogger(observability.DefaultLoggerConfig())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		sess := New(requestID, conn, eng, registry, logger)
		_ = sess.Serve(context.Background())
	})
	srv := httptest.NewServer(handler)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func newSessionTestEngine(t *testing.T) (*engine.Engine, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	reg := provider.NewRegistry(nil, nil)
	require.NoError(t, reg.Register(provider.NewMock("mock", 10)))
	backend := mockup.NewMemoryBackend()
	storage := mockup.NewHMACSignedStorage(backend, "https://storage.internal", []byte("test-secret"))
	analyzer := mockup.New(st, storage, reg, provider.PrivacyOnDevice)
	return engine.New(st, nil, analyzer, reg, nil, provider.PrivacyOnDevice, engine.Config{EnableClarifications: false}), st
}

func TestSessionStreamsSectionsThenCompletes(t *testing.T) {
	eng, st := newSessionTestEngine(t)
	ctx := context.Background()

	req := &schema.PRDRequest{
		ID: "sr1", Title: "Checkout flow", Description: "A login and checkout workflow with payment.",
		Priority: schema.PriorityMedium, Status: schema.StatusPending,
	}
	require.NoError(t, st.CreateRequest(ctx, req))

	registry := NewRegistry()
	srv, wsURL := newTestServer(t, req.ID, eng, registry)
	defer srv.Close()

	conn := dial(t, wsURL)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameStartGeneration, Command: &StartCommand{RequestID: req.ID}}))

	var sawSection, sawComplete bool
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		switch f.Type {
		case FrameSection:
			sawSection = true
			require.False(t, sawComplete, "section frame arrived after generation_complete")
		case FrameGenerationComplete:
			sawComplete = true
			require.NotNil(t, f.Document)
		}
		if sawComplete {
			break
		}
	}

	require.True(t, sawSection)
	require.True(t, sawComplete)
}

func TestSessionRejectsConcurrentSessionsForSameRequest(t *testing.T) {
	eng, st := newSessionTestEngine(t)
	ctx := context.Background()

	req := &schema.PRDRequest{
		ID: "sr2", Title: "Widget", Description: "A widget.",
		Priority: schema.PriorityMedium, Status: schema.StatusPending,
	}
	require.NoError(t, st.CreateRequest(ctx, req))

	registry := NewRegistry()
	require.True(t, registry.acquire(req.ID))

	srv, wsURL := newTestServer(t, req.ID, eng, registry)
	defer srv.Close()

	conn := dial(t, wsURL)
	defer conn.Close()

	var f Frame
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, FrameError, f.Type)

	registry.release(req.ID)
}
