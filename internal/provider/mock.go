package provider

import (
	"context"
	"fmt"
)

// MockProvider returns canned, deterministic responses. Useful for local
// development and tests without an external API dependency.
type MockProvider struct {
	name       string
	priority   int
	maxPrivacy PrivacyLevel
}

// NewMock creates a MockProvider with the given name and priority, privacy
// ceiling onDevice (the most restrictive, so it is always a valid fallback).
func NewMock(name string, priority int) *MockProvider {
	return &MockProvider{name: name, priority: priority, maxPrivacy: PrivacyOnDevice}
}

func (m *MockProvider) Name() string                { return m.name }
func (m *MockProvider) Priority() int                { return m.priority }
func (m *MockProvider) Capabilities() []string       { return []string{"generate", "analyzeImage"} }
func (m *MockProvider) MaxPrivacyLevel() PrivacyLevel { return m.maxPrivacy }
func (m *MockProvider) IsAvailable() bool             { return true }

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	return &GenerateResponse{
		Text:  fmt.Sprintf("# Mock PRD\n\nGenerated from prompt of length %d.", len(req.Prompt)),
		Model: m.name,
	}, nil
}

func (m *MockProvider) AnalyzeImage(ctx context.Context, req AnalyzeImageRequest) (*AnalyzeImageResponse, error) {
	if req.ImageURL == "" {
		return nil, fmt.Errorf("imageURL is required")
	}
	return &AnalyzeImageResponse{
		RawJSON: `{"ui_elements":[],"extracted_text":[],"layout":{"screen_type":"unknown","hierarchy_levels":1,"primary_layout":"unknown"},"user_flows":[],"business_logic":[],"confidence":0.4}`,
		Model:   m.name,
	}, nil
}
