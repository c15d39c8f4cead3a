package hermes

const (
	StreamName   = "MATURITY_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

// Answer subjects
func SubjectAnswerSet(userID string) string     { return "maturity.answer." + userID + ".set" }
func SubjectAnswerCleared(userID string) string { return "maturity.answer." + userID + ".cleared" }

// Evidence subjects
func SubjectEvidenceSaved(userID string) string   { return "maturity.evidence." + userID + ".saved" }
func SubjectEvidenceDeleted(userID string) string { return "maturity.evidence." + userID + ".deleted" }

func SubjectScoreRecomputed(userID string) string { return "maturity.score." + userID + ".recomputed" }

// Framework administration subjects
func SubjectFrameworkUpdated(id string) string { return "maturity.framework." + id + ".updated" }
func SubjectFrameworkDeleted(id string) string { return "maturity.framework." + id + ".deleted" }
