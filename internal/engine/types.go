// Package engine drives the clarification-and-generation pipeline (§4.7): a
// fixed sequence of phases — analyze, gate, context, generate, persist — each
// producing a PhaseResult appended to a Report, the same sequential
// step-accumulation shape the pack's orchestrator uses for agent workflows,
// generalized here to fixed engine phases instead of routed agent calls.
package engine

import (
	"context"
	"time"

	"github.com/prdforge/prdforge/pkg/schema"
)

// ClarificationPriority is the closed three-tier ranking applied to merged
// clarifying questions.
type ClarificationPriority int

const (
	PriorityLow ClarificationPriority = iota
	PriorityMedium
	PriorityHigh
)

// Clarification is one ranked, deduplicated clarifying question.
type Clarification struct {
	Question string
	Priority ClarificationPriority
	Source   string // "text" or "mockup"
}

// DefaultConfidenceThreshold is the §4.7 Phase 2 gate default.
const DefaultConfidenceThreshold = 0.70

// Config tunes the engine's gate and defaults.
type Config struct {
	ConfidenceThreshold  float64
	EnableClarifications bool
}

func (c Config) withDefaults() Config {
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return c
}

// PhaseName enumerates the fixed engine phases, in execution order.
type PhaseName string

const (
	PhaseAnalyze  PhaseName = "analyze"
	PhaseGate     PhaseName = "gate"
	PhaseContext  PhaseName = "context"
	PhaseGenerate PhaseName = "generate"
	PhasePersist  PhaseName = "persist"
)

// PhaseResult records one phase's outcome for the Report.
type PhaseResult struct {
	Phase    PhaseName
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Report accumulates the phases executed for one Generate call.
type Report struct {
	RequestID string
	Phases    []PhaseResult
}

func (r *Report) record(phase PhaseName, start time.Time, err error) {
	r.Phases = append(r.Phases, PhaseResult{Phase: phase, Started: start, Duration: time.Since(start), Err: err})
}

// Outcome is Generate's terminal result: exactly one of Document or
// Clarifications is populated.
type Outcome struct {
	Document           *schema.PRDDocument
	Clarifications     []Clarification // non-nil only when NeedsClarification is true
	NeedsClarification bool
	Report             Report
}

// ProjectLookup resolves a linked codebase project's indexing state; the
// codebase indexer implements it once a project has been fetched and indexed.
type ProjectLookup interface {
	GetProject(ctx context.Context, id string) (*schema.CodebaseProject, error)
}

// AcceptedAnswer is one clarification the requester has already answered,
// fed back into Phase 3's context build on a resumed Generate call.
type AcceptedAnswer struct {
	Question string
	Answer   string
}

// GenerateOptions carries the per-call inputs Generate needs beyond the
// persisted PRDRequest: the requester's mockup sources already analyzed
// into consolidated form is fetched internally, so only accepted answers
// from a prior clarification round are passed in.
type GenerateOptions struct {
	AcceptedAnswers []AcceptedAnswer

	// OnPhase, if set, is called synchronously as each phase starts — the
	// hook internal/session uses to emit the analyze, retrieve and
	// provider-selected progress frames of §4.8. The section-n frames are sent
	// by the session after Generate returns, not through this hook.
	OnPhase func(PhaseName)
}

func (o GenerateOptions) notify(phase PhaseName) {
	if o.OnPhase != nil {
		o.OnPhase(phase)
	}
}
