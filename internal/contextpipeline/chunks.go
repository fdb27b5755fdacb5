// Package contextpipeline converts a heterogeneous set of PRD generation
// inputs (core requirements, clarifications, mockup analyses, codebase
// overview, retrieved code files) into one or more markdown context blocks
// sized to a provider's usable context window.
package contextpipeline

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the closed, priority-ordered set of chunk categories.
type Kind int

const (
	KindCore Kind = iota + 1
	KindClarifications
	KindMockupAnalysis
	KindCodebaseOverview
	KindCodeFiles
)

func (k Kind) String() string {
	switch k {
	case KindCore:
		return "core"
	case KindClarifications:
		return "clarifications"
	case KindMockupAnalysis:
		return "mockupAnalysis"
	case KindCodebaseOverview:
		return "codebaseOverview"
	case KindCodeFiles:
		return "codeFiles"
	default:
		return "unknown"
	}
}

// summarizable reports whether condensation (§4.5.b) may reduce chunks of
// this kind. core and clarifications are always preserved verbatim;
// codebaseOverview is preserved too (it is already a terse summary).
func (k Kind) summarizable() bool {
	return k == KindMockupAnalysis || k == KindCodeFiles
}

// Chunk is one priority-ordered block of markdown context.
type Chunk struct {
	Kind Kind
	Text string
}

// CoreInput is the PRD's title and description, always the first chunk.
type CoreInput struct {
	Title       string
	Description string
}

// ClarificationQA is one answered clarifying question.
type ClarificationQA struct {
	Question string
	Answer   string
}

// MockupInput is one mockup's structured analysis, ready for chunk assembly.
type MockupInput struct {
	Name          string
	UIComponents  []string
	Flows         []string
	BusinessLogic []string
}

// CodebaseOverviewInput summarizes an indexed repository for context.
type CodebaseOverviewInput struct {
	RepositoryURL        string
	Branch               string
	LanguageBytes        map[string]int64
	Frameworks           []string
	ArchitecturePatterns []string
}

// CodeFileInput is one retrieved code reference.
type CodeFileInput struct {
	Path    string
	Purpose string
	Excerpt string
}

const codeExcerptMaxChars = 800

// BuildCoreChunk renders the always-first, never-summarized core chunk.
func BuildCoreChunk(in CoreInput) Chunk {
	return Chunk{Kind: KindCore, Text: fmt.Sprintf("# %s\n\n%s", in.Title, in.Description)}
}

// BuildClarificationChunks renders Q/A pairs, splitting into additional parts
// when a single batch would exceed perChunkTarget tokens.
func BuildClarificationChunks(qas []ClarificationQA, perChunkTarget int) []Chunk {
	if len(qas) == 0 {
		return nil
	}

	var chunks []Chunk
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			chunks = append(chunks, Chunk{Kind: KindClarifications, Text: strings.TrimRight(b.String(), "\n")})
			b.Reset()
		}
	}

	b.WriteString("**Clarifications:**\n\n")
	for _, qa := range qas {
		entry := fmt.Sprintf("- Q: %s\n  A: %s\n", qa.Question, qa.Answer)
		if b.Len() > 0 && EstimateTokens(b.String()+entry, false) > perChunkTarget {
			flush()
			b.WriteString("**Clarifications (continued):**\n\n")
		}
		b.WriteString(entry)
	}
	flush()
	return chunks
}

// BuildMockupChunks renders one chunk per mockup (UI components → flows →
// business logic), splitting a mockup into a UI-only part and a
// flows+business-logic part when it exceeds perChunkTarget.
func BuildMockupChunks(mockups []MockupInput, perChunkTarget int) []Chunk {
	var chunks []Chunk
	for _, m := range mockups {
		full := renderMockup(m, true, true, true)
		if EstimateTokens(full, false) <= perChunkTarget {
			chunks = append(chunks, Chunk{Kind: KindMockupAnalysis, Text: full})
			continue
		}
		chunks = append(chunks, Chunk{Kind: KindMockupAnalysis, Text: renderMockup(m, true, false, false)})
		chunks = append(chunks, Chunk{Kind: KindMockupAnalysis, Text: renderMockup(m, false, true, true)})
	}
	return chunks
}

func renderMockup(m MockupInput, ui, flows, logic bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Mockup: %s\n\n", m.Name)
	if ui {
		b.WriteString("**UI Components:**\n")
		for _, c := range m.UIComponents {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}
	if flows {
		b.WriteString("**User Flows:**\n")
		for _, f := range m.Flows {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}
	if logic {
		b.WriteString("**Business Logic:**\n")
		for _, l := range m.BusinessLogic {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildCodebaseOverviewChunk summarizes repository metadata: top 10
// languages by byte count, up to 10 frameworks, and architecture patterns.
func BuildCodebaseOverviewChunk(in CodebaseOverviewInput) Chunk {
	type langCount struct {
		name  string
		bytes int64
	}
	langs := make([]langCount, 0, len(in.LanguageBytes))
	for name, bytes := range in.LanguageBytes {
		langs = append(langs, langCount{name, bytes})
	}
	sort.Slice(langs, func(i, j int) bool {
		if langs[i].bytes != langs[j].bytes {
			return langs[i].bytes > langs[j].bytes
		}
		return langs[i].name < langs[j].name
	})
	if len(langs) > 10 {
		langs = langs[:10]
	}

	frameworks := in.Frameworks
	if len(frameworks) > 10 {
		frameworks = frameworks[:10]
	}

	var b strings.Builder
	b.WriteString("## Codebase Overview\n\n")
	fmt.Fprintf(&b, "Repository: %s (%s)\n\n", in.RepositoryURL, in.Branch)
	b.WriteString("**Languages:**\n")
	for _, l := range langs {
		fmt.Fprintf(&b, "- %s\n", l.name)
	}
	if len(frameworks) > 0 {
		b.WriteString("\n**Frameworks:** " + strings.Join(frameworks, ", ") + "\n")
	}
	if len(in.ArchitecturePatterns) > 0 {
		b.WriteString("\n**Architecture Patterns:** " + strings.Join(in.ArchitecturePatterns, ", ") + "\n")
	}
	return Chunk{Kind: KindCodebaseOverview, Text: strings.TrimRight(b.String(), "\n")}
}

// BuildCodeFileChunks renders one chunk per retrieved file, each excerpt
// truncated to ~800 characters.
func BuildCodeFileChunks(files []CodeFileInput) []Chunk {
	chunks := make([]Chunk, 0, len(files))
	for _, f := range files {
		excerpt := f.Excerpt
		if len(excerpt) > codeExcerptMaxChars {
			excerpt = excerpt[:codeExcerptMaxChars]
		}
		text := fmt.Sprintf("### %s\n\nPurpose: %s\n\n```\n%s\n```", f.Path, f.Purpose, excerpt)
		chunks = append(chunks, Chunk{Kind: KindCodeFiles, Text: text})
	}
	return chunks
}
