// Package provider selects and executes calls against a priority-ordered,
// health-tracked chain of LLM/vision backends, falling back across the chain
// on definitive failure.
package provider

import (
	"context"
	"time"
)

// PrivacyLevel is the closed enum of data-handling tiers a provider supports.
// Levels are ordered: OnDevice is the most restrictive, External the least.
type PrivacyLevel int

const (
	PrivacyOnDevice PrivacyLevel = iota
	PrivacyPrivateCloud
	PrivacyExternal
)

func (p PrivacyLevel) satisfies(max PrivacyLevel) bool { return p <= max }

// GenerateRequest is a text-generation call against a provider.
type GenerateRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// GenerateResponse is a provider's text-generation result.
type GenerateResponse struct {
	Text  string
	Model string
}

// AnalyzeImageRequest is a mockup-analysis call against a provider.
type AnalyzeImageRequest struct {
	ImageURL           string
	RequestTitle       string
	RequestDescription string
	ExistingAnalyses   []string
}

// AnalyzeImageResponse is a provider's raw mockup-analysis output, encoded as
// its native JSON shape; internal/mockup is responsible for parsing it into
// schema.MockupAnalysisResult.
type AnalyzeImageResponse struct {
	RawJSON string
	Model   string
}

// Provider is one backend in the fallback chain: an LLM or vision service
// advertising a capability set per §4.6.
type Provider interface {
	Name() string
	Priority() int
	Capabilities() []string
	MaxPrivacyLevel() PrivacyLevel
	IsAvailable() bool

	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	AnalyzeImage(ctx context.Context, req AnalyzeImageRequest) (*AnalyzeImageResponse, error)
}

// Clock abstracts time.Now so health-tracking tests are deterministic.
type Clock func() time.Time
