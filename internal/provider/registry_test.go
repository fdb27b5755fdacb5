package provider

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name         string
	priority     int
	maxPrivacy   PrivacyLevel
	available    bool
	generateFunc func(ctx context.Context) (*GenerateResponse, error)
	calls        int
}

func (f *fakeProvider) Name() string                     { return f.name }
func (f *fakeProvider) Priority() int                     { return f.priority }
func (f *fakeProvider) Capabilities() []string             { return []string{"generate"} }
func (f *fakeProvider) MaxPrivacyLevel() PrivacyLevel       { return f.maxPrivacy }
func (f *fakeProvider) IsAvailable() bool                   { return f.available }
func (f *fakeProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	f.calls++
	return f.generateFunc(ctx)
}
func (f *fakeProvider) AnalyzeImage(ctx context.Context, req AnalyzeImageRequest) (*AnalyzeImageResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func newOKProvider(name string, priority int) *fakeProvider {
	return &fakeProvider{
		name: name, priority: priority, maxPrivacy: PrivacyExternal, available: true,
		generateFunc: func(ctx context.Context) (*GenerateResponse, error) {
			return &GenerateResponse{Text: "ok from " + name, Model: name}, nil
		},
	}
}

func TestSelectHighestPriorityByDefault(t *testing.T) {
	r := NewRegistry(nil, nil)
	require.NoError(t, r.Register(newOKProvider("low", 1)))
	require.NoError(t, r.Register(newOKProvider("high", 10)))

	resp, err := r.Generate(context.Background(), "", PrivacyExternal, GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "high", resp.Model)
}

func TestPreferredProviderWins(t *testing.T) {
	r := NewRegistry(nil, nil)
	require.NoError(t, r.Register(newOKProvider("low", 1)))
	require.NoError(t, r.Register(newOKProvider("high", 10)))

	resp, err := r.Generate(context.Background(), "low", PrivacyExternal, GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "low", resp.Model)
}

func TestUnavailablePreferredFallsBackToPriorityOrder(t *testing.T) {
	r := NewRegistry(nil, nil)
	require.NoError(t, r.Register(newOKProvider("high", 10)))

	resp, err := r.Generate(context.Background(), "ghost", PrivacyExternal, GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "high", resp.Model)
}

func TestPrivacyLevelExcludesCandidate(t *testing.T) {
	r := NewRegistry(nil, nil)
	external := newOKProvider("external-only", 10)
	external.maxPrivacy = PrivacyExternal
	onDevice := newOKProvider("on-device", 1)
	onDevice.maxPrivacy = PrivacyOnDevice
	require.NoError(t, r.Register(external))
	require.NoError(t, r.Register(onDevice))

	resp, err := r.Generate(context.Background(), "", PrivacyOnDevice, GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "on-device", resp.Model)
}

func TestDefinitiveFailureAdvancesToNextCandidate(t *testing.T) {
	r := NewRegistry(nil, nil)
	failing := &fakeProvider{name: "failing", priority: 10, maxPrivacy: PrivacyExternal, available: true,
		generateFunc: func(ctx context.Context) (*GenerateResponse, error) {
			return nil, fmt.Errorf("invalid request")
		},
	}
	require.NoError(t, r.Register(failing))
	require.NoError(t, r.Register(newOKProvider("backup", 1)))

	resp, err := r.Generate(context.Background(), "", PrivacyExternal, GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "backup", resp.Model)
	assert.Equal(t, 1, failing.calls, "a definitive failure only retries the next candidate once, not the failing one")
}

func TestTransientFailureRetriesSameProvider(t *testing.T) {
	r := NewRegistry(nil, nil)
	attempts := 0
	flaky := &fakeProvider{name: "flaky", priority: 10, maxPrivacy: PrivacyExternal, available: true,
		generateFunc: func(ctx context.Context) (*GenerateResponse, error) {
			attempts++
			if attempts < 2 {
				return nil, fmt.Errorf("connection reset: %w", ErrTransient)
			}
			return &GenerateResponse{Text: "ok", Model: "flaky"}, nil
		},
	}
	require.NoError(t, r.Register(flaky))

	resp, err := r.Generate(context.Background(), "", PrivacyExternal, GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "flaky", resp.Model)
	assert.Equal(t, 2, attempts)
}

func TestProviderBecomesUnhealthyAfterThreeFailures(t *testing.T) {
	r := NewRegistry(nil, nil)
	calls := 0
	bad := &fakeProvider{name: "bad", priority: 10, maxPrivacy: PrivacyExternal, available: true,
		generateFunc: func(ctx context.Context) (*GenerateResponse, error) {
			calls++
			return nil, fmt.Errorf("boom")
		},
	}
	require.NoError(t, r.Register(bad))

	for i := 0; i < 3; i++ {
		_, err := r.Generate(context.Background(), "bad", PrivacyExternal, GenerateRequest{Prompt: "hi"})
		require.Error(t, err)
	}
	require.NoError(t, r.Register(newOKProvider("backup", 1)))

	statuses := r.Statuses()
	var badStatus Status
	for _, s := range statuses {
		if s.Name == "bad" {
			badStatus = s
		}
	}
	assert.False(t, badStatus.Healthy)

	resp, err := r.Generate(context.Background(), "bad", PrivacyExternal, GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "backup", resp.Model, "cooling-down provider must be skipped even when explicitly preferred")
}

func TestNoCandidateReturnsError(t *testing.T) {
	r := NewRegistry(nil, nil)
	_, err := r.Generate(context.Background(), "", PrivacyExternal, GenerateRequest{Prompt: "hi"})
	require.ErrorIs(t, err, ErrNoCandidate)
}
