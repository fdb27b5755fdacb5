package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/prdforge/prdforge/pkg/schema"
)

var headingLine = regexp.MustCompile(`(?m)^(#{1,3})\s+(.+?)\s*$`)

var nonSlugChar = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives the stable section id §4.8 streams to clients: a
// lower-cased, hyphen-joined slug of the heading text, falling back to an
// ordinal when a heading slugs to nothing (e.g. a heading made only of
// punctuation).
func slugify(title string, ordinal int) string {
	s := strings.Trim(nonSlugChar.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if s == "" {
		return orderedID(ordinal)
	}
	return s
}

// parseSections splits generated markdown into ordered PRDSections by
// level-1 through level-3 headings, per §4.7 Phase 5. Text before the first
// heading, if non-blank, becomes an unlabeled executive_summary section.
func parseSections(text string) []schema.PRDSection {
	locs := headingLine.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		body := strings.TrimSpace(text)
		if body == "" {
			return nil
		}
		return []schema.PRDSection{{
			ID:          slugify("Executive Summary", 1),
			Order:       0,
			SectionType: schema.SectionExecutiveSummary,
			Title:       "Executive Summary",
			Content:     body,
		}}
	}

	var sections []schema.PRDSection
	if lead := strings.TrimSpace(text[:locs[0][0]]); lead != "" {
		sections = append(sections, schema.PRDSection{
			ID:          slugify("Executive Summary", 1),
			Order:       0,
			SectionType: schema.SectionExecutiveSummary,
			Title:       "Executive Summary",
			Content:     lead,
		})
	}

	for i, loc := range locs {
		title := strings.TrimSpace(text[loc[4]:loc[5]])
		contentStart := loc[1]
		contentEnd := len(text)
		if i+1 < len(locs) {
			contentEnd = locs[i+1][0]
		}
		content := strings.TrimSpace(text[contentStart:contentEnd])

		sections = append(sections, schema.PRDSection{
			ID:          slugify(title, len(sections)+1),
			Order:       len(sections),
			SectionType: classifySection(title),
			Title:       title,
			Content:     content,
		})
	}
	return sections
}

func orderedID(n int) string {
	return "section-" + strconv.Itoa(n)
}

// sectionKeywords maps each closed sectionType to the case-insensitive
// substrings §4.7 Phase 5 matches a heading against, checked in order so the
// most specific match (e.g. "non-functional" before "functional") wins.
var sectionKeywords = []struct {
	typ      schema.SectionType
	contains []string
}{
	{schema.SectionExecutiveSummary, []string{"executive", "summary", "overview"}},
	{schema.SectionProblemStatement, []string{"problem"}},
	{schema.SectionUserStories, []string{"user stor", "persona"}},
	{schema.SectionNonFunctionalRequirements, []string{"non-functional", "non functional", "nfr"}},
	{schema.SectionFunctionalRequirements, []string{"functional requirement", "feature"}},
	{schema.SectionTechnicalRequirements, []string{"technical"}},
	{schema.SectionAcceptanceCriteria, []string{"acceptance"}},
	{schema.SectionTimeline, []string{"timeline", "milestone", "roadmap"}},
	{schema.SectionRisks, []string{"risk"}},
}

// classifySection maps a heading to the closed SectionType enum by matching
// case-insensitive substrings; an unmatched heading rounds to appendix.
func classifySection(heading string) schema.SectionType {
	lower := strings.ToLower(heading)
	for _, k := range sectionKeywords {
		for _, substr := range k.contains {
			if strings.Contains(lower, substr) {
				return k.typ
			}
		}
	}
	return schema.SectionAppendix
}

// wordCount counts whitespace-delimited tokens across all section content.
func wordCount(sections []schema.PRDSection) int {
	n := 0
	for _, s := range sections {
		n += len(strings.Fields(s.Content))
	}
	return n
}
