package scoring

import (
	"math"

	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
)

// ProgressResult counts answered questions regardless of their rating value.
type ProgressResult struct {
	Answered   int `json:"answered"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Progress counts over every question in the catalog.
func Progress(c *catalog.Catalog, answers Answers) ProgressResult {
	return count(c.QuestionIDs(), answers)
}

// UserProgress restricts the count to the questions assigned to a user.
// Assigned IDs that are not in the catalog are ignored.
func UserProgress(c *catalog.Catalog, answers Answers, assigned []string) ProgressResult {
	want := make(map[string]bool, len(assigned))
	for _, id := range assigned {
		want[id] = true
	}
	var ids []string
	for _, id := range c.QuestionIDs() {
		if want[id] {
			ids = append(ids, id)
		}
	}
	return count(ids, answers)
}

// DomainProgress returns the progress of each domain.
func DomainProgress(c *catalog.Catalog, answers Answers) map[string]ProgressResult {
	out := make(map[string]ProgressResult, len(c.Domains))
	for k, d := range c.Domains {
		out[k] = domainProgress(d, answers)
	}
	return out
}

func domainProgress(d catalog.Domain, answers Answers) ProgressResult {
	qs := d.Questions()
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return count(ids, answers)
}

func count(ids []string, answers Answers) ProgressResult {
	p := ProgressResult{Total: len(ids)}
	for _, id := range ids {
		if _, ok := answers.Rating(id); ok {
			p.Answered++
		}
	}
	if p.Total > 0 {
		p.Percentage = int(math.Round(float64(p.Answered) / float64(p.Total) * 100))
	}
	return p
}
