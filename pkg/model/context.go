package model

import "time"

// Profile is the subset of the user profile exposed to prompt construction
type Profile struct {
	Username    string `firestore:"username" json:"username,omitempty"`
	DisplayName string `firestore:"displayName" json:"displayName,omitempty"`
	Region      string `firestore:"region" json:"region,omitempty"`
	Religion    string `firestore:"religion" json:"religion,omitempty"`
}

const GoalStatusDone = "done"

type Goal struct {
	ID     string `firestore:"-" json:"id"`
	Title  string `firestore:"title" json:"title"`
	Status string `firestore:"status" json:"status,omitempty"`
}

type SessionSummary struct {
	Summary   string    `firestore:"summary" json:"summary"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
}

// UserContext is the bundle handed to the downstream prompt builder
type UserContext struct {
	// Profile is the JSON-serialized Profile, "{}" when unavailable
	Profile           string   `json:"profile"`
	Goals             []*Goal  `json:"goals"`
	Memories          []string `json:"memories"`
	SessionSummary    string   `json:"sessionSummary"`
	SelectedMemoryIDs []string `json:"selectedMemoryIds"`
}
