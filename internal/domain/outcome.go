package domain

// Consensus thresholds. Only a perfect score is an exact match.
const (
	consensusCloseThreshold = 0.7
)

// Official-record thresholds. Alliance totals are coarser than per-scout
// data, so exact and close matches are granted below a perfect score.
const (
	officialExactThreshold = 0.95
	officialCloseThreshold = 0.75
)

// ClassifyConsensusOutcome maps a consensus accuracy score to an outcome:
// 1.0 is an exact match, [0.7, 1.0) a close match, anything lower a mismatch.
func ClassifyConsensusOutcome(score float64) Outcome {
	switch {
	case score == 1.0:
		return OutcomeExactMatch
	case score >= consensusCloseThreshold:
		return OutcomeCloseMatch
	default:
		return OutcomeMismatch
	}
}

// ClassifyOfficialOutcome maps an official-record accuracy score to an
// outcome: >= 0.95 exact, >= 0.75 close, anything lower a mismatch.
func ClassifyOfficialOutcome(score float64) Outcome {
	switch {
	case score >= officialExactThreshold:
		return OutcomeExactMatch
	case score >= officialCloseThreshold:
		return OutcomeCloseMatch
	default:
		return OutcomeMismatch
	}
}
