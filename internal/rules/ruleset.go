// Package rules implements the deterministic decision tiers. Both evaluators
// are pure functions over the evidence model: no I/O, no randomness, no
// wall-clock reads.
package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yourorg/rdcredit/internal/evidence"
)

// CriterionRule drives the Tier 2 heuristic for one criterion.
type CriterionRule struct {
	// Keywords that count as positive evidence when found in the project
	// description or the slot rationale.
	Keywords []string `yaml:"keywords"`
	// Negations that, when present, resolve the criterion NotSatisfied with
	// high certainty.
	Negations []string `yaml:"negations"`
	// MinHits is how many distinct keyword hits are needed for Satisfied.
	MinHits int `yaml:"minHits"`
}

// Ruleset is externally supplied configuration: the exclusion list, the
// per-criterion heuristics, and the escalation trigger are deliberately not
// hard-coded.
type Ruleset struct {
	Version            string                               `yaml:"version"`
	ExcludedCategories []string                             `yaml:"excludedCategories"`
	Criteria           map[evidence.Criterion]CriterionRule `yaml:"criteria"`
	UncertaintyMarkers []string                             `yaml:"uncertaintyMarkers"`
}

// DefaultRuleset returns the compiled-in configuration used when no ruleset
// file is supplied. The category and keyword lists are placeholders pending
// domain sign-off, not tax guidance.
func DefaultRuleset() Ruleset {
	return Ruleset{
		Version: "default-1",
		ExcludedCategories: []string{
			"data-entry",
			"ui-only",
			"marketing",
			"routine-maintenance",
			"training",
			"documentation",
		},
		Criteria: map[evidence.Criterion]CriterionRule{
			evidence.PermittedPurpose: {
				Keywords:  []string{"new product", "new process", "improved", "performance", "functionality", "reliability", "quality"},
				Negations: []string{"cosmetic", "style only", "aesthetic"},
				MinHits:   1,
			},
			evidence.UncertaintyElimination: {
				Keywords:  []string{"uncertain", "unknown", "feasibility", "could not predict", "unclear whether", "hypothesis"},
				Negations: []string{"known solution", "off-the-shelf", "established method"},
				MinHits:   1,
			},
			evidence.ProcessOfExperimentation: {
				Keywords:  []string{"experiment", "prototype", "trial", "benchmark", "a/b test", "iteration", "simulation", "evaluated alternatives"},
				Negations: []string{"no testing", "single attempt"},
				MinHits:   1,
			},
			evidence.TechnologicalNature: {
				Keywords:  []string{"engineering", "computer science", "physics", "chemistry", "biology", "algorithm", "architecture"},
				Negations: []string{"market research", "consumer preference", "management study"},
				MinHits:   1,
			},
		},
		UncertaintyMarkers: []string{"tbd", "unclear", "insufficient evidence", "needs review"},
	}
}

// LoadRuleset reads a YAML ruleset file. Fields left empty fall back to the
// defaults so a partial override file stays valid.
func LoadRuleset(path string) (Ruleset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Ruleset{}, fmt.Errorf("read ruleset: %w", err)
	}
	rs := DefaultRuleset()
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return Ruleset{}, fmt.Errorf("parse ruleset %s: %w", path, err)
	}
	if len(rs.Criteria) == 0 {
		rs.Criteria = DefaultRuleset().Criteria
	}
	return rs, nil
}

func containsAny(haystack string, needles []string) (string, bool) {
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if strings.Contains(haystack, n) {
			return n, true
		}
	}
	return "", false
}

func countHits(haystack string, needles []string) int {
	hits := 0
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && strings.Contains(haystack, n) {
			hits++
		}
	}
	return hits
}
