package model

// MaxRateLimitEvents bounds the number of timestamps kept in a window document
const MaxRateLimitEvents = 50

// RateLimitWindow holds recent call timestamps (unix seconds) for one user.
// One window is shared by every rate-limited memory endpoint.
type RateLimitWindow struct {
	Events []int64 `firestore:"events" json:"events"`
}
