package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prdforge/prdforge/internal/contextpipeline"
	"github.com/prdforge/prdforge/internal/mockup"
	"github.com/prdforge/prdforge/internal/provider"
	"github.com/prdforge/prdforge/internal/rag"
	"github.com/prdforge/prdforge/internal/store"
	"github.com/prdforge/prdforge/pkg/schema"
)

// Engine wires the Request/Document Store, RAG retriever, mockup analyzer,
// context pipeline, and provider registry into the five-phase pipeline
// described at the package level.
type Engine struct {
	Store     store.Store
	Mockups   *mockup.Analyzer
	RAG       *rag.Retriever
	Providers *provider.Registry
	Projects  ProjectLookup

	MaxPrivacy provider.PrivacyLevel
	Config     Config
}

// New constructs an Engine. projects may be nil when no codebase-context
// port is wired yet; Phase 3 then skips RAG retrieval entirely.
func New(st store.Store, retriever *rag.Retriever, mockups *mockup.Analyzer, providers *provider.Registry, projects ProjectLookup, maxPrivacy provider.PrivacyLevel, cfg Config) *Engine {
	return &Engine{
		Store:      st,
		Mockups:    mockups,
		RAG:        retriever,
		Providers:  providers,
		Projects:   projects,
		MaxPrivacy: maxPrivacy,
		Config:     cfg.withDefaults(),
	}
}

// Generate runs the full clarification-and-generation pipeline for requestID.
func (e *Engine) Generate(ctx context.Context, requestID string, opts GenerateOptions) (*Outcome, error) {
	report := Report{RequestID: requestID}

	req, err := e.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request %s: %w", requestID, err)
	}
	if !req.Status.AcceptsWork() {
		return nil, fmt.Errorf("request %s in status %s does not accept generation work", requestID, req.Status)
	}

	// Move to processing before analysis: §4.1 only allows
	// processing->clarificationNeeded, not pending->clarificationNeeded
	// directly.
	if req.Status != schema.StatusProcessing {
		updated, err := e.Store.TransitionRequest(ctx, requestID, schema.StatusProcessing, "")
		if err != nil {
			return nil, fmt.Errorf("transition to processing: %w", err)
		}
		req = updated
	}

	opts.notify(PhaseAnalyze)
	_, consolidated, confidence, clarifications, err := e.phaseAnalyze(ctx, &report, req)
	if err != nil {
		return nil, err
	}

	pending := unresolvedClarifications(clarifications, opts.AcceptedAnswers)
	if needsClarification := e.phaseGate(&report, confidence, pending); needsClarification {
		if _, err := e.Store.TransitionRequest(ctx, requestID, schema.StatusClarificationNeeded, ""); err != nil {
			return nil, fmt.Errorf("transition to clarificationNeeded: %w", err)
		}
		return &Outcome{NeedsClarification: true, Clarifications: pending, Report: report}, nil
	}

	opts.notify(PhaseContext)
	ctxOutput, err := e.phaseContext(ctx, &report, req, consolidated, opts.AcceptedAnswers)
	if err != nil {
		e.fail(ctx, requestID, err)
		return nil, err
	}

	opts.notify(PhaseGenerate)
	genText, err := e.phaseGenerate(ctx, &report, req, ctxOutput)
	if err != nil {
		e.fail(ctx, requestID, err)
		return nil, err
	}

	opts.notify(PhasePersist)
	doc, err := e.phasePersist(ctx, &report, req, genText, confidence)
	if err != nil {
		e.fail(ctx, requestID, err)
		return nil, err
	}

	return &Outcome{Document: doc, Report: report}, nil
}

// fail transitions requestID to failed(reason) per §7's "exhausted provider
// chain" failure semantics. A caller-cancelled context is deliberately left
// alone: §4.8 has the session, not the engine, mark a cancelled request —
// Generate here just stops without claiming a terminal state that isn't its
// to claim.
func (e *Engine) fail(ctx context.Context, requestID string, cause error) {
	if errors.Is(cause, context.Canceled) {
		return
	}
	_, _ = e.Store.TransitionRequest(context.WithoutCancel(ctx), requestID, schema.StatusFailed, cause.Error())
}

// phaseAnalyze is Phase 1: combine textual and (if any mockups exist) visual
// confidence signals and derive the ranked clarification set.
func (e *Engine) phaseAnalyze(ctx context.Context, report *Report, req *schema.PRDRequest) (textSignals, *schema.ConsolidatedMockupAnalysis, float64, []Clarification, error) {
	start := time.Now()
	signals := analyzeText(req.Title, req.Description)

	var consolidated *schema.ConsolidatedMockupAnalysis
	confidence := signals.Confidence

	if len(req.MockupSources) > 0 && e.Mockups != nil {
		c, err := e.Mockups.Consolidate(ctx, req.ID)
		if err != nil {
			report.record(PhaseAnalyze, start, err)
			return signals, nil, 0, nil, fmt.Errorf("consolidate mockups: %w", err)
		}
		consolidated = c
		confidence = combineConfidence(signals.Confidence, len(c.BusinessLogic), len(c.UserFlows), len(c.UIElementTypes))
	}

	clarifications := mergeClarifications(signals, consolidated)
	report.record(PhaseAnalyze, start, nil)
	return signals, consolidated, confidence, clarifications, nil
}

// phaseGate is Phase 2: gate on confidence threshold and the
// ENABLE_CLARIFICATIONS flag.
func (e *Engine) phaseGate(report *Report, confidence float64, pending []Clarification) bool {
	start := time.Now()
	needs := confidence < e.Config.ConfidenceThreshold && e.Config.EnableClarifications && len(pending) > 0
	report.record(PhaseGate, start, nil)
	return needs
}

// unresolvedClarifications drops any merged clarification whose question
// text already has an accepted answer.
func unresolvedClarifications(clarifications []Clarification, answered []AcceptedAnswer) []Clarification {
	if len(answered) == 0 {
		return clarifications
	}
	answeredSet := make(map[string]bool, len(answered))
	for _, a := range answered {
		answeredSet[strings.ToLower(strings.TrimSpace(a.Question))] = true
	}
	var out []Clarification
	for _, c := range clarifications {
		if !answeredSet[strings.ToLower(strings.TrimSpace(c.Question))] {
			out = append(out, c)
		}
	}
	return out
}

// phaseContext is Phase 3: optionally retrieve codebase chunks, collect
// mockup analysis and accepted Q/A, and assemble the token-budgeted context.
func (e *Engine) phaseContext(ctx context.Context, report *Report, req *schema.PRDRequest, consolidated *schema.ConsolidatedMockupAnalysis, answers []AcceptedAnswer) (contextpipeline.Output, error) {
	start := time.Now()

	chunks := []contextpipeline.Chunk{
		contextpipeline.BuildCoreChunk(contextpipeline.CoreInput{Title: req.Title, Description: req.Description}),
	}

	if len(answers) > 0 {
		qas := make([]contextpipeline.ClarificationQA, len(answers))
		for i, a := range answers {
			qas[i] = contextpipeline.ClarificationQA{Question: a.Question, Answer: a.Answer}
		}
		chunks = append(chunks, contextpipeline.BuildClarificationChunks(qas, contextpipeline.DefaultPerChunkTarget)...)
	}

	if consolidated != nil && len(consolidated.UIElementTypes)+len(consolidated.UserFlows)+len(consolidated.BusinessLogic) > 0 {
		chunks = append(chunks, contextpipeline.BuildMockupChunks([]contextpipeline.MockupInput{{
			Name:          "Consolidated mockups",
			UIComponents:  uiElementStrings(consolidated.UIElementTypes),
			Flows:         consolidated.UserFlows,
			BusinessLogic: businessLogicDescriptions(consolidated.BusinessLogic),
		}}, contextpipeline.DefaultPerChunkTarget)...)
	}

	if e.Projects != nil {
		links, err := e.Store.ListCodebaseLinks(ctx, req.ID)
		if err != nil {
			report.record(PhaseContext, start, err)
			return contextpipeline.Output{}, fmt.Errorf("list codebase links: %w", err)
		}
		for _, projectID := range links {
			project, err := e.Projects.GetProject(ctx, projectID)
			if err != nil || project == nil {
				continue
			}
			if project.IndexingStatus != schema.IndexingCompleted || project.TotalChunks == 0 {
				continue
			}
			chunks = append(chunks, contextpipeline.BuildCodebaseOverviewChunk(contextpipeline.CodebaseOverviewInput{
				RepositoryURL:        project.RepositoryURL,
				Branch:               project.RepositoryBranch,
				LanguageBytes:        project.Languages,
				Frameworks:           project.Frameworks,
				ArchitecturePatterns: project.ArchitecturePatterns,
			}))
			if e.RAG != nil {
				result, err := e.RAG.Retrieve(ctx, projectID, req.Title, req.Description, rag.Options{})
				if err != nil {
					report.record(PhaseContext, start, err)
					return contextpipeline.Output{}, fmt.Errorf("retrieve codebase context for %s: %w", projectID, err)
				}
				files := make([]contextpipeline.CodeFileInput, len(result.Chunks))
				for i, c := range result.Chunks {
					files[i] = contextpipeline.CodeFileInput{Path: c.FilePath, Purpose: string(c.ChunkType), Excerpt: c.Content}
				}
				chunks = append(chunks, contextpipeline.BuildCodeFileChunks(files)...)
			}
		}
	}

	output := contextpipeline.Build(chunks, contextpipeline.Budget{})
	report.record(PhaseContext, start, nil)
	return output, nil
}

func uiElementStrings(types []schema.UIElementType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// phaseGenerate is Phase 4: invoke the provider chain with the assembled
// context. Generation calls are single-shot, so a multiTurn Output is
// flattened into one prompt carrying each turn's acknowledgment, preserving
// the same information the provider would see across separate turns.
func (e *Engine) phaseGenerate(ctx context.Context, report *Report, req *schema.PRDRequest, out contextpipeline.Output) (string, error) {
	start := time.Now()

	prompt := out.Text
	if out.Strategy == contextpipeline.StrategyMultiTurn {
		var b strings.Builder
		for _, turn := range out.Turns {
			b.WriteString(turn.Text)
			b.WriteString("\n\n")
			if !turn.IsFinal {
				b.WriteString(turn.Acknowledgment)
				b.WriteString("\n\n")
			}
		}
		prompt = b.String()
	}

	resp, err := e.Providers.Generate(ctx, req.PreferredProvider, e.MaxPrivacy, provider.GenerateRequest{Prompt: prompt})
	if err != nil {
		report.record(PhaseGenerate, start, err)
		return "", fmt.Errorf("generate PRD: %w", err)
	}
	report.record(PhaseGenerate, start, nil)
	return resp.Text, nil
}

// phasePersist is Phase 5: parse the generated text into sections, compute
// derived metadata, tag low-confidence documents, and atomically attach the
// document to its request. Mockups are marked processed with a reset TTL.
func (e *Engine) phasePersist(ctx context.Context, report *Report, req *schema.PRDRequest, generated string, confidence float64) (*schema.PRDDocument, error) {
	start := time.Now()

	sections := parseSections(generated)
	if len(sections) == 0 {
		err := fmt.Errorf("generated text for request %s contained no parseable sections", req.ID)
		report.record(PhasePersist, start, err)
		return nil, err
	}

	wc := wordCount(sections)
	var tags []string
	if confidence < schema.LowConfidenceThreshold {
		tags = append(tags, schema.NeedsReviewTag)
	}

	doc := &schema.PRDDocument{
		ID:          uuid.NewString(),
		RequestID:   req.ID,
		Title:       req.Title,
		Content:     generated,
		Sections:    sections,
		Confidence:  confidence,
		GeneratedBy: req.PreferredProvider,
		Version:     1,
		GeneratedAt: time.Now(),
		Metadata: schema.DocumentMetadata{
			Format:            "markdown",
			Language:          "en",
			WordCount:         wc,
			EstimatedReadTime: schema.EstimatedReadTime(wc),
			Tags:              tags,
		},
	}

	if err := e.Store.AttachDocument(ctx, doc); err != nil {
		report.record(PhasePersist, start, err)
		return nil, fmt.Errorf("attach document: %w", err)
	}

	if err := e.resetMockupExpiry(ctx, req.ID); err != nil {
		report.record(PhasePersist, start, err)
		return nil, err
	}

	report.record(PhasePersist, start, nil)
	return doc, nil
}

func (e *Engine) resetMockupExpiry(ctx context.Context, requestID string) error {
	if e.Mockups == nil {
		return nil
	}
	uploads, err := e.Mockups.Store.ListMockupUploads(ctx, requestID)
	if err != nil {
		return fmt.Errorf("list mockups for expiry reset: %w", err)
	}
	expiry := time.Now().Add(schema.DefaultMockupTTL)
	for _, u := range uploads {
		u.IsProcessed = true
		u.ExpiresAt = expiry
		if err := e.Mockups.Store.UpdateMockupUpload(ctx, u); err != nil {
			return fmt.Errorf("reset expiry for mockup %s: %w", u.ID, err)
		}
	}
	return nil
}
