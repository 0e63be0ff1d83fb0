package repository

// Firestore layout shared with the mobile client and the rest of the backend
const (
	collectionUsers            = "users"
	collectionMemories         = "memories"
	collectionGoals            = "goals"
	collectionSessionSummaries = "sessionSummaries"
	collectionRateLimits       = "rateLimits"

	fieldUpdatedAt  = "updatedAt"
	fieldCreatedAt  = "createdAt"
	fieldDecayScore = "decayScore"
	fieldPinned     = "pinned"
	fieldEvents     = "events"
)

// nextDecayScore adds delta to current and caps the result at ceiling
func nextDecayScore(current, delta, ceiling float64) float64 {
	return min(current+delta, ceiling)
}
