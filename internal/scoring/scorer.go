package scoring

import (
	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
)

// CategoryResult captures one category's average for display.
type CategoryResult struct {
	Key      string         `json:"key"`
	Title    string         `json:"title"`
	Average  *float64       `json:"average"`
	Progress ProgressResult `json:"progress"`
}

// DomainResult captures one domain's contribution to the overall score.
type DomainResult struct {
	Key        string           `json:"key"`
	Title      string           `json:"title"`
	Average    *float64         `json:"average"`
	Weight     float64          `json:"weight"`
	Weighted   float64          `json:"weighted"`
	Categories []CategoryResult `json:"categories"`
	Progress   ProgressResult   `json:"progress"`
}

// Score is the output of a full recomputation. DomainScores holds nil for
// domains with no answers.
type Score struct {
	DomainScores  map[string]*float64 `json:"domain_scores"`
	Domains       []DomainResult      `json:"domains"`
	Overall       float64             `json:"overall"`
	MaturityLevel string              `json:"maturity_level"`
	Answered      int                 `json:"answered"`
	Total         int                 `json:"total"`
	Percentage    int                 `json:"percentage"`
}

// Scorer recomputes scores from scratch for a catalog and answer snapshot.
type Scorer struct {
	weights   WeightSet
	normalize bool
}

// NewScorer creates a Scorer. A nil weight set falls back to the weights declared
// on the catalog at assessment time. With normalize set, weights are divided by
// their actual sum before use.
func NewScorer(weights WeightSet, normalize bool) *Scorer {
	return &Scorer{weights: weights, normalize: normalize}
}

// Weights resolves the weight set used for a catalog.
func (s *Scorer) Weights(c *catalog.Catalog) WeightSet {
	w := s.weights
	if w == nil {
		w = WeightsFromCatalog(c)
	}
	if s.normalize {
		w = w.Normalized()
	}
	return w
}

// Assess computes domain averages, the weighted overall score, its maturity
// level and global progress. Answers for questions outside the catalog and
// out-of-range ratings are ignored.
func (s *Scorer) Assess(c *catalog.Catalog, answers Answers) Score {
	weights := s.Weights(c)

	score := Score{
		DomainScores: make(map[string]*float64, len(c.Domains)),
		Domains:      make([]DomainResult, 0, len(c.Domains)),
	}

	for _, dk := range c.DomainKeys() {
		d := c.Domains[dk]
		avg := DomainAverage(d, answers)
		score.DomainScores[dk] = avg

		dr := DomainResult{
			Key:      dk,
			Title:    d.Title,
			Average:  avg,
			Weight:   weights[dk],
			Weighted: valueOrZero(avg) * weights[dk],
			Progress: domainProgress(d, answers),
		}
		for _, ck := range d.CategoryKeys() {
			cat := d.Categories[ck]
			ids := make([]string, len(cat.Questions))
			for i, q := range cat.Questions {
				ids[i] = q.ID
			}
			dr.Categories = append(dr.Categories, CategoryResult{
				Key:      ck,
				Title:    cat.Title,
				Average:  CategoryAverage(cat, answers),
				Progress: count(ids, answers),
			})
		}
		score.Domains = append(score.Domains, dr)
	}

	score.Overall = OverallScore(score.DomainScores, weights)
	score.MaturityLevel = MaturityLevel(score.Overall)

	p := Progress(c, answers)
	score.Answered = p.Answered
	score.Total = p.Total
	score.Percentage = p.Percentage
	return score
}
