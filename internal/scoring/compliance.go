package scoring

import (
	"math"

	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
)

// ComplianceResult is the evaluation of one framework against the current answers.
// Score is the 0–100 percentage (one decimal); AverageRating and Threshold are on
// the 1–5 rating scale and are what IsCompliant compares.
type ComplianceResult struct {
	FrameworkID       string  `json:"framework_id"`
	Score             float64 `json:"score"`
	AverageRating     float64 `json:"average_rating"`
	Threshold         float64 `json:"threshold"`
	IsCompliant       bool    `json:"is_compliant"`
	AnsweredQuestions int     `json:"answered_questions"`
	TotalQuestions    int     `json:"total_questions"`
	Gap               float64 `json:"gap"`
}

// ComplianceScore evaluates a framework. It returns nil for a disabled framework,
// an empty mapping, or when none of the mapped questions are answered: an
// unassessed framework is not reported as non-compliant.
func ComplianceScore(fw catalog.Framework, answers Answers) *ComplianceResult {
	if !fw.Enabled || len(fw.MappedQuestions) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(fw.MappedQuestions))
	var sum, answered int
	for _, id := range fw.MappedQuestions {
		if seen[id] {
			continue
		}
		seen[id] = true
		if r, ok := answers.Rating(id); ok {
			sum += r
			answered++
		}
	}
	if answered == 0 {
		return nil
	}

	avg := float64(sum) / float64(answered)
	return &ComplianceResult{
		FrameworkID:       fw.ID,
		Score:             roundTo(avg/MaxRating*100, 1),
		AverageRating:     avg,
		Threshold:         fw.Threshold,
		IsCompliant:       avg >= fw.Threshold,
		AnsweredQuestions: answered,
		TotalQuestions:    len(seen),
		Gap:               math.Max(0, fw.Threshold-avg),
	}
}

// Summary aggregates compliance across frameworks. Only frameworks that produced
// a result are counted.
type Summary struct {
	Results        map[string]*ComplianceResult `json:"results"`
	Compliant      int                          `json:"compliant"`
	NonCompliant   int                          `json:"non_compliant"`
	Evaluated      int                          `json:"evaluated"`
	ComplianceRate float64                      `json:"compliance_rate"`
}

// ComplianceSummary evaluates every framework. ComplianceRate is 0 when nothing
// could be evaluated.
func ComplianceSummary(frameworks []catalog.Framework, answers Answers) Summary {
	s := Summary{Results: make(map[string]*ComplianceResult)}
	for _, fw := range frameworks {
		res := ComplianceScore(fw, answers)
		if res == nil {
			continue
		}
		s.Results[fw.ID] = res
		s.Evaluated++
		if res.IsCompliant {
			s.Compliant++
		} else {
			s.NonCompliant++
		}
	}
	if s.Evaluated > 0 {
		s.ComplianceRate = float64(s.Compliant) / float64(s.Evaluated) * 100
	}
	return s
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
