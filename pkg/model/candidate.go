package model

// Candidate is a fact proposed by the extractor, not yet embedded or persisted
type Candidate struct {
	Type       MemoryType `json:"type"`
	Text       string     `json:"text"`
	Importance int        `json:"importance"`
	Tags       []string   `json:"tags"`
}
