package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prdforge/prdforge/internal/errs"
	"github.com/prdforge/prdforge/pkg/schema"
)

func newRequest(id string) *schema.PRDRequest {
	return &schema.PRDRequest{
		ID:       id,
		Title:    "Add real-time messaging",
		Priority: schema.PriorityMedium,
	}
}

func TestCreateRequestStartsPending(t *testing.T) {
	s := NewMemoryStore()
	req := newRequest("r1")
	require.NoError(t, s.CreateRequest(context.Background(), req))

	got, err := s.GetRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusPending, got.Status)
	assert.Equal(t, 0, got.Status.Progress())
}

func TestCriticalPriorityRequiresLongDescription(t *testing.T) {
	s := NewMemoryStore()
	req := newRequest("r2")
	req.Priority = schema.PriorityCritical
	req.Description = "too short"

	err := s.CreateRequest(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Validation))
}

func TestTransitionFollowsStateMachine(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, newRequest("r3")))

	got, err := s.TransitionRequest(ctx, "r3", schema.StatusProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusProcessing, got.Status)
	assert.Equal(t, 50, got.Status.Progress())

	_, err = s.TransitionRequest(ctx, "r3", schema.StatusPending, "")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.BusinessRule))
}

func TestTerminalStateNeverTransitions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, newRequest("r4")))
	_, err := s.TransitionRequest(ctx, "r4", schema.StatusProcessing, "")
	require.NoError(t, err)
	_, err = s.TransitionRequest(ctx, "r4", schema.StatusFailed, "boom")
	require.NoError(t, err)

	_, err = s.TransitionRequest(ctx, "r4", schema.StatusProcessing, "")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.BusinessRule))
}

func TestAttachDocumentCompletesRequestAtomically(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, newRequest("r5")))
	_, err := s.TransitionRequest(ctx, "r5", schema.StatusProcessing, "")
	require.NoError(t, err)

	doc := &schema.PRDDocument{
		ID:         "d1",
		RequestID:  "r5",
		Title:      "Chat PRD",
		Content:    "# Chat\n...",
		Confidence: 0.9,
	}
	require.NoError(t, s.AttachDocument(ctx, doc))

	got, err := s.GetRequest(ctx, "r5")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusCompleted, got.Status)
	assert.Equal(t, "d1", got.GeneratedDocumentID)
	assert.NotNil(t, got.CompletedAt)

	readBack, err := s.GetDocumentByRequest(ctx, "r5")
	require.NoError(t, err)
	assert.Equal(t, "d1", readBack.ID)
}

func TestAttachDocumentRequiresReviewTagBelowThreshold(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, newRequest("r6")))
	_, err := s.TransitionRequest(ctx, "r6", schema.StatusProcessing, "")
	require.NoError(t, err)

	doc := &schema.PRDDocument{
		ID:         "d2",
		RequestID:  "r6",
		Title:      "Chat PRD",
		Content:    "# Chat\n...",
		Confidence: 0.5,
	}
	err = s.AttachDocument(ctx, doc)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.BusinessRule))
}

func TestMockupUploadEnforcesSizeAndMimeType(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, newRequest("r7")))

	oversized := &schema.MockupUpload{ID: "m1", RequestID: "r7", FileSize: 11 * 1024 * 1024, MimeType: "image/png"}
	err := s.CreateMockupUpload(ctx, oversized)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Validation))

	badMime := &schema.MockupUpload{ID: "m2", RequestID: "r7", FileSize: 1024, MimeType: "application/pdf"}
	err = s.CreateMockupUpload(ctx, badMime)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Validation))

	ok := &schema.MockupUpload{ID: "m3", RequestID: "r7", FileSize: 1024, MimeType: "image/png"}
	require.NoError(t, s.CreateMockupUpload(ctx, ok))
}

func TestMockupUploadRequiresExistingRequest(t *testing.T) {
	s := NewMemoryStore()
	m := &schema.MockupUpload{ID: "m4", RequestID: "does-not-exist", FileSize: 1024, MimeType: "image/png"}
	err := s.CreateMockupUpload(context.Background(), m)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestLinkCodebaseRejectsDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, newRequest("r8")))

	require.NoError(t, s.LinkCodebase(ctx, "r8", "proj-1"))
	err := s.LinkCodebase(ctx, "r8", "proj-1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Conflict))

	links, err := s.ListCodebaseLinks(ctx, "r8")
	require.NoError(t, err)
	assert.Equal(t, []string{"proj-1"}, links)
}
