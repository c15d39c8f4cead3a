// Package assessment threads an explicit snapshot of catalog, answers and
// frameworks through the pure scoring functions, and owns the stateful edges
// around them: persistence, events, metrics and the answer toggle policy.
package assessment

import (
	"sort"

	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
	"github.com/MikeSquared-Agency/Maturity/internal/scoring"
)

// State is the in-memory snapshot handed to the engine for one recomputation.
type State struct {
	Catalog    *catalog.Catalog
	Answers    scoring.Answers
	Frameworks []catalog.Framework
	// Assigned is the user's question assignment; nil means no scoped view.
	Assigned []string
}

// Report bundles every output of a full recomputation.
type Report struct {
	UserID         string                            `json:"user_id"`
	Score          scoring.Score                     `json:"score"`
	Compliance     scoring.Summary                   `json:"compliance"`
	Progress       scoring.ProgressResult            `json:"progress"`
	UserProgress   *scoring.ProgressResult           `json:"user_progress,omitempty"`
	DomainProgress map[string]scoring.ProgressResult `json:"domain_progress"`
	EvidenceGaps   []string                          `json:"evidence_gaps,omitempty"`
	Orphans        []string                          `json:"orphans,omitempty"`
}

// Evaluate recomputes everything from scratch. Orphan answers are dropped
// before compliance so a stale answer cannot move a framework result.
// evidenced lists question IDs that have evidence attached.
func Evaluate(st State, scorer *scoring.Scorer, evidenced map[string]bool) Report {
	known := st.Answers.Known(st.Catalog)

	r := Report{
		Score:          scorer.Assess(st.Catalog, known),
		Compliance:     scoring.ComplianceSummary(st.Frameworks, known),
		Progress:       scoring.Progress(st.Catalog, known),
		DomainProgress: scoring.DomainProgress(st.Catalog, known),
		EvidenceGaps:   EvidenceGaps(st.Catalog, known, evidenced),
		Orphans:        Orphans(st.Catalog, st.Answers),
	}
	if st.Assigned != nil {
		up := scoring.UserProgress(st.Catalog, known, st.Assigned)
		r.UserProgress = &up
	}
	return r
}

// Orphans lists answered question IDs that are not in the catalog, sorted.
func Orphans(c *catalog.Catalog, answers scoring.Answers) []string {
	var out []string
	for id := range answers {
		if !c.Has(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// EvidenceGaps lists answered questions that require evidence but have none.
// Gaps are informational only; they never affect scores.
func EvidenceGaps(c *catalog.Catalog, answers scoring.Answers, evidenced map[string]bool) []string {
	var out []string
	for _, dk := range c.DomainKeys() {
		for _, q := range c.Domains[dk].Questions() {
			if !q.RequiresEvidence || evidenced[q.ID] {
				continue
			}
			if _, ok := answers.Rating(q.ID); ok {
				out = append(out, q.ID)
			}
		}
	}
	return out
}
