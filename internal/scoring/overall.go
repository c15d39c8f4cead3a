package scoring

const (
	LevelNotImplemented = "Not Implemented"
	LevelInitial        = "Initial/Ad-hoc"
	LevelDefined        = "Defined/Repeatable"
	LevelManaged        = "Managed/Measured"
	LevelOptimized      = "Optimized/Innovating"
)

// OverallScore is the weighted sum of domain averages over every domain in the
// weight set. A nil (unanswered) domain contributes 0, so incomplete assessments
// score lower instead of being re-normalized. Domains without a weight contribute 0.
func OverallScore(domainAverages map[string]*float64, weights WeightSet) float64 {
	var total float64
	for _, k := range weights.keys() {
		total += valueOrZero(domainAverages[k]) * weights[k]
	}
	return total
}

// MaturityLevel maps a 0–5 score to its label. Lower bounds are inclusive.
func MaturityLevel(score float64) string {
	switch {
	case score < 1.5:
		return LevelNotImplemented
	case score < 2.5:
		return LevelInitial
	case score < 3.5:
		return LevelDefined
	case score < 4.5:
		return LevelManaged
	default:
		return LevelOptimized
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
