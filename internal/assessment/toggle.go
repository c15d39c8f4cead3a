package assessment

import "github.com/MikeSquared-Agency/Maturity/internal/scoring"

// Intent is what a rating click resolves to.
type Intent string

const (
	IntentSet   Intent = "set"
	IntentClear Intent = "clear"
)

// Select applies the click policy: choosing the rating already recorded for a
// question clears it, anything else sets it. The store itself never toggles.
func Select(current scoring.Answers, questionID string, selected int) Intent {
	if r, ok := current.Rating(questionID); ok && r == selected {
		return IntentClear
	}
	return IntentSet
}
