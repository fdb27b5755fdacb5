package engine

import (
	"sort"
	"strings"

	"github.com/prdforge/prdforge/pkg/schema"
)

// textSignals is what textual analysis of a PRD title/description yields:
// a base confidence plus the feature/flow/component vocabulary extracted
// from it, consumed by both the confidence-combination formula and
// clarification derivation.
type textSignals struct {
	Confidence float64
	Features   []string
	Flows      []string
}

// featureKeywords and flowKeywords are the closed vocabularies used to spot
// candidate features/flows in free-text requirements. A longer description
// naming more of them yields a higher base confidence, capped well below 1.0
// so mockup evidence (via mockupBonus) can still move the needle.
var featureKeywords = []string{
	"authentication", "authorization", "login", "signup", "payment", "checkout",
	"search", "notification", "messaging", "upload", "export", "import",
	"dashboard", "report", "admin", "permission", "billing", "subscription",
}

var flowKeywords = []string{
	"flow", "journey", "onboarding", "checkout", "signup", "login", "workflow",
}

const (
	baseConfidenceFloor = 0.3
	perFeatureBoost     = 0.05
	perFlowBoost        = 0.03
	maxTextConfidence   = 0.65
)

// analyzeText extracts the textSignals driving Phase 1. Deterministic by
// design: the same title/description always yields the same confidence so
// gate behavior is reproducible and testable without a live provider call.
func analyzeText(title, description string) textSignals {
	haystack := strings.ToLower(title + " " + description)

	var features []string
	for _, kw := range featureKeywords {
		if strings.Contains(haystack, kw) {
			features = append(features, kw)
		}
	}
	var flows []string
	for _, kw := range flowKeywords {
		if strings.Contains(haystack, kw) {
			flows = append(flows, kw)
		}
	}

	confidence := baseConfidenceFloor + float64(len(features))*perFeatureBoost + float64(len(flows))*perFlowBoost
	if confidence > maxTextConfidence {
		confidence = maxTextConfidence
	}

	return textSignals{Confidence: confidence, Features: features, Flows: flows}
}

const maxMockupBonus = 0.35

// combineConfidence applies the §4.7 Phase 1 formula: conf' = min(1, textConf
// + mockupBonus), with mockupBonus = 0.03·min(5,|features|) +
// 0.02·min(5,|flows|) + 0.01·min(10,|components|), capped at 0.35. features,
// flows, and components are the mockup-derived counts (business logic items,
// user flows, and UI elements respectively) — textConf already accounts for
// the requirements text on its own.
func combineConfidence(textConf float64, features, flows int, components int) float64 {
	bonus := 0.03*float64(min(5, features)) +
		0.02*float64(min(5, flows)) +
		0.01*float64(min(10, components))
	if bonus > maxMockupBonus {
		bonus = maxMockupBonus
	}
	conf := textConf + bonus
	if conf > 1 {
		conf = 1
	}
	return conf
}

// mergeClarifications unions text-derived and mockup-derived clarifications,
// deduplicates by question text, and ranks by the §4.7 three-tier priority.
func mergeClarifications(signals textSignals, consolidated *schema.ConsolidatedMockupAnalysis) []Clarification {
	var out []Clarification
	seen := make(map[string]bool)
	add := func(c Clarification) {
		key := strings.ToLower(strings.TrimSpace(c.Question))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, c)
	}

	if consolidated != nil {
		knownFeatures := make(map[string]bool, len(signals.Features))
		for _, f := range signals.Features {
			knownFeatures[f] = true
		}
		mentionedInLogic := strings.ToLower(strings.Join(businessLogicDescriptions(consolidated.BusinessLogic), " "))
		for feature := range knownFeatures {
			if !strings.Contains(mentionedInLogic, feature) {
				add(Clarification{
					Question: "What is the business logic governing " + feature + "?",
					Priority: PriorityHigh,
					Source:   "mockup",
				})
			}
		}

		if len(consolidated.UserFlows) < len(signals.Features) {
			add(Clarification{
				Question: "Please describe the complete user flow for each feature; the mockups don't cover them all.",
				Priority: PriorityMedium,
				Source:   "mockup",
			})
		}

		if !hasFormInput(consolidated.UIElementTypes) {
			add(Clarification{
				Question: "What data does the user provide, and how is it validated and stored?",
				Priority: PriorityHigh,
				Source:   "mockup",
			})
		}
	} else if len(signals.Features) == 0 {
		add(Clarification{
			Question: "What are the core features this product must support?",
			Priority: PriorityHigh,
			Source:   "text",
		})
	}

	if len(signals.Flows) == 0 {
		add(Clarification{
			Question: "What is the primary user flow end-to-end?",
			Priority: PriorityMedium,
			Source:   "text",
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

func businessLogicDescriptions(items []schema.BusinessLogicItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Description
	}
	return out
}

func hasFormInput(types []schema.UIElementType) bool {
	for _, t := range types {
		switch t {
		case schema.UITextField, schema.UICheckbox, schema.UIRadioButton, schema.UIDropdown, schema.UISearchBar:
			return true
		}
	}
	return false
}
