package mockup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prdforge/prdforge/internal/provider"
	"github.com/prdforge/prdforge/internal/store"
	"github.com/prdforge/prdforge/pkg/schema"
)

func newAnalyzer(t *testing.T) (*Analyzer, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	backend := NewMemoryBackend()
	storage := NewHMACSignedStorage(backend, "https://storage.internal", []byte("test-secret"))
	reg := provider.NewRegistry(nil, nil)
	require.NoError(t, reg.Register(provider.NewMock("mock-vision", 10)))
	return New(st, storage, reg, provider.PrivacyOnDevice), st
}

func TestUploadRequiresExistingRequest(t *testing.T) {
	a, _ := newAnalyzer(t)
	_, err := a.Upload(context.Background(), "does-not-exist", "screen.png", "image/png", []byte("png-bytes"))
	require.Error(t, err)
}

func TestUploadAndAnalyzeRoundTrips(t *testing.T) {
	a, st := newAnalyzer(t)
	ctx := context.Background()
	require.NoError(t, st.CreateRequest(ctx, &schema.PRDRequest{ID: "r1", Title: "Chat", Priority: schema.PriorityMedium}))

	upload, err := a.Upload(ctx, "r1", "screen.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.False(t, upload.IsProcessed)

	analyzed, err := a.Analyze(ctx, upload.ID, "Chat", "Real-time messaging", nil)
	require.NoError(t, err)
	assert.True(t, analyzed.IsProcessed)
	require.NotNil(t, analyzed.AnalysisResult)
	assert.InDelta(t, 0.4, analyzed.AnalysisResult.Confidence, 0.001)
}

func TestConsolidateDeduplicatesAndAverages(t *testing.T) {
	a, st := newAnalyzer(t)
	ctx := context.Background()
	require.NoError(t, st.CreateRequest(ctx, &schema.PRDRequest{ID: "r2", Title: "Chat", Priority: schema.PriorityMedium}))

	m1 := &schema.MockupUpload{ID: "m1", RequestID: "r2", FileSize: 1, MimeType: "image/png", AnalysisResult: &schema.MockupAnalysisResult{
		UIElements: []schema.UIElement{{Type: schema.UIButton}, {Type: schema.UILabel}},
		UserFlows:  []string{"login"},
		Confidence: 0.8,
	}}
	m2 := &schema.MockupUpload{ID: "m2", RequestID: "r2", FileSize: 1, MimeType: "image/png", AnalysisResult: &schema.MockupAnalysisResult{
		UIElements: []schema.UIElement{{Type: schema.UIButton}, {Type: schema.UITextField}},
		UserFlows:  []string{"signup"},
		Confidence: 0.6,
	}}
	require.NoError(t, st.CreateMockupUpload(ctx, m1))
	require.NoError(t, st.CreateMockupUpload(ctx, m2))
	require.NoError(t, st.UpdateMockupUpload(ctx, m1))
	require.NoError(t, st.UpdateMockupUpload(ctx, m2))

	consolidated, err := a.Consolidate(ctx, "r2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []schema.UIElementType{schema.UIButton, schema.UILabel, schema.UITextField}, consolidated.UIElementTypes)
	assert.ElementsMatch(t, []string{"login", "signup"}, consolidated.UserFlows)
	assert.InDelta(t, 0.7, consolidated.MeanConfidence, 0.001)
}
