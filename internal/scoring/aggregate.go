package scoring

import (
	"github.com/MikeSquared-Agency/Maturity/internal/catalog"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Answers maps a question ID to its 1–5 rating. A missing key means unanswered.
type Answers map[string]int

// ValidRating reports whether r is a usable maturity rating.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// Rating returns the answer for a question. Out-of-range values count as unanswered.
func (a Answers) Rating(questionID string) (int, bool) {
	r, ok := a[questionID]
	if !ok || !ValidRating(r) {
		return 0, false
	}
	return r, true
}

// Known returns a copy restricted to valid ratings for questions in the catalog.
func (a Answers) Known(c *catalog.Catalog) Answers {
	out := make(Answers, len(a))
	for _, id := range c.QuestionIDs() {
		if r, ok := a.Rating(id); ok {
			out[id] = r
		}
	}
	return out
}

// CategoryAverage averages the answered questions of a category.
// Returns nil when nothing in the category is answered.
func CategoryAverage(cat catalog.Category, answers Answers) *float64 {
	return average(cat.Questions, answers)
}

// DomainAverage averages every answered question across all categories of the
// domain. Categories carry no sub-weight.
func DomainAverage(d catalog.Domain, answers Answers) *float64 {
	return average(d.Questions(), answers)
}

func average(questions []catalog.Question, answers Answers) *float64 {
	var sum, n int
	for _, q := range questions {
		if r, ok := answers.Rating(q.ID); ok {
			sum += r
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	return &avg
}
