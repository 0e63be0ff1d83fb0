package memory

import (
	"io"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Weights blend the retrieval score terms
type Weights struct {
	Similarity float64 `yaml:"similarity"`
	Importance float64 `yaml:"importance"`
	Decay      float64 `yaml:"decay"`
	PinBoost   float64 `yaml:"pinBoost"`
}

// Config holds the tunable constants of the memory engine. Zero-value fields
// in a loaded file keep their defaults.
type Config struct {
	// ingestion
	BaselineLimit      int     `yaml:"baselineLimit"`
	DuplicateThreshold float64 `yaml:"duplicateThreshold"`
	EmbeddingDecimals  int     `yaml:"embeddingDecimals"`
	DefaultSource      string  `yaml:"defaultSource"`

	// retrieval
	CandidateLimit int     `yaml:"candidateLimit"`
	TopK           int     `yaml:"topK"`
	GoalLimit      int     `yaml:"goalLimit"`
	Weights        Weights `yaml:"weights"`

	// reinforcement
	ReinforceStep float64 `yaml:"reinforceStep"`
	DecayCeiling  float64 `yaml:"decayCeiling"`

	// rate limiting of ingestion and retrieval
	RateLimit  int           `yaml:"rateLimit"`
	RateWindow time.Duration `yaml:"rateWindow"`
}

func DefaultConfig() Config {
	return Config{
		BaselineLimit:      200,
		DuplicateThreshold: 0.9,
		EmbeddingDecimals:  3,
		DefaultSource:      "chat",

		CandidateLimit: 100,
		TopK:           8,
		GoalLimit:      50,
		Weights: Weights{
			Similarity: 0.7,
			Importance: 0.2,
			Decay:      0.1,
			PinBoost:   0.05,
		},

		ReinforceStep: 0.1,
		DecayCeiling:  1.4,

		RateLimit:  10,
		RateWindow: 60 * time.Second,
	}
}

// LoadConfig reads a YAML document and overlays it on DefaultConfig
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, goerr.Wrap(err, "failed to decode memory config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.BaselineLimit <= 0, c.CandidateLimit <= 0, c.TopK <= 0, c.GoalLimit <= 0:
		return goerr.New("memory config limits must be positive",
			goerr.V("baselineLimit", c.BaselineLimit),
			goerr.V("candidateLimit", c.CandidateLimit),
			goerr.V("topK", c.TopK),
			goerr.V("goalLimit", c.GoalLimit))
	case c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1:
		return goerr.New("duplicateThreshold must be in (0, 1]", goerr.V("duplicateThreshold", c.DuplicateThreshold))
	case c.EmbeddingDecimals < 0:
		return goerr.New("embeddingDecimals must not be negative", goerr.V("embeddingDecimals", c.EmbeddingDecimals))
	case c.ReinforceStep <= 0 || c.DecayCeiling < 1:
		return goerr.New("invalid reinforcement settings",
			goerr.V("reinforceStep", c.ReinforceStep),
			goerr.V("decayCeiling", c.DecayCeiling))
	case c.RateLimit <= 0 || c.RateWindow < time.Second:
		return goerr.New("invalid rate limit settings",
			goerr.V("rateLimit", c.RateLimit),
			goerr.V("rateWindow", c.RateWindow))
	}
	return nil
}
