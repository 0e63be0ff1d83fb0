package model

import (
	"time"
	"unicode/utf8"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidMemoryType = goerr.New("invalid memory type")
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

type MemoryType string

const (
	MemoryTypeStory      MemoryType = "story"
	MemoryTypeFact       MemoryType = "fact"
	MemoryTypePreference MemoryType = "preference"
	MemoryTypeGoalHint   MemoryType = "goal_hint"
)

// MemoryTypes lists every accepted memory type in declaration order
var MemoryTypes = []MemoryType{
	MemoryTypeStory,
	MemoryTypeFact,
	MemoryTypePreference,
	MemoryTypeGoalHint,
}

// Validate checks if the memory type is valid
func (t MemoryType) Validate() error {
	switch t {
	case MemoryTypeStory, MemoryTypeFact, MemoryTypePreference, MemoryTypeGoalHint:
		return nil
	default:
		return goerr.Wrap(ErrInvalidMemoryType, "unknown memory type", goerr.V("type", t))
	}
}

const (
	MinMemoryTextLen = 8
	MaxMemoryTextLen = 300

	MinImportance     = 1
	MaxImportance     = 5
	DefaultImportance = 3

	MaxTags = 5

	InitialDecayScore = 1.0
)

// Memory is a durable fact about one user, extracted from conversation text.
// Zero CreatedAt and UpdatedAt are assigned by the store on write.
type Memory struct {
	ID         MemoryID           `firestore:"-" json:"id"`
	UID        string             `firestore:"uid" json:"uid"`
	Type       MemoryType         `firestore:"type" json:"type"`
	Text       string             `firestore:"text" json:"text"`
	Importance int                `firestore:"importance" json:"importance"`
	Tags       []string           `firestore:"tags" json:"tags"`
	Embedding  firestore.Vector32 `firestore:"embedding" json:"embedding,omitempty"`
	Novelty    float64            `firestore:"novelty" json:"novelty"`
	DecayScore float64            `firestore:"decayScore" json:"decayScore"`
	Pinned     bool               `firestore:"pinned" json:"pinned"`
	Source     string             `firestore:"source" json:"source"`
	CreatedAt  time.Time          `firestore:"createdAt,serverTimestamp" json:"createdAt"`
	UpdatedAt  time.Time          `firestore:"updatedAt,serverTimestamp" json:"updatedAt"`
}

// ValidTextLength reports whether text fits the persisted length bounds, counted in characters
func ValidTextLength(text string) bool {
	n := utf8.RuneCountInString(text)
	return n >= MinMemoryTextLen && n <= MaxMemoryTextLen
}
