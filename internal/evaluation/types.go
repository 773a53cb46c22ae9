package evaluation

import (
	"time"

	"bellavista/internal/models"
)

// MatchCase is a labelled menu lookup. An empty Want means nothing on the menu should match.
type MatchCase struct {
	Query string `yaml:"query"`
	Want  string `yaml:"want"`
}

// ParseCase is a labelled utterance with the items and quantities it orders.
// Item names are compared after resolving them against the menu.
type ParseCase struct {
	Text  string              `yaml:"text"`
	Items []models.ParsedItem `yaml:"items"`
}

// IntentCase is a labelled utterance with the action the keyword responder should pick.
type IntentCase struct {
	Text   string            `yaml:"text"`
	Action models.ActionKind `yaml:"action"`
}

// Scenario is a named corpus of labelled cases.
type Scenario struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Match       []MatchCase  `yaml:"match"`
	Parse       []ParseCase  `yaml:"parse"`
	Intent      []IntentCase `yaml:"intent"`
}

// Size returns the number of cases in the scenario.
func (s *Scenario) Size() int {
	return len(s.Match) + len(s.Parse) + len(s.Intent)
}

// Failure records one case the engine got wrong.
type Failure struct {
	Kind  string `json:"kind"`
	Input string `json:"input"`
	Want  string `json:"want"`
	Got   string `json:"got"`
}

// EvaluationResult holds the scores of one scenario run.
type EvaluationResult struct {
	Scenario string             `json:"scenario"`
	Cases    int                `json:"cases"`
	Metrics  map[string]float64 `json:"metrics"`
	Failures []Failure          `json:"failures,omitempty"`
	Duration time.Duration      `json:"duration"`
}

// SweepPoint is the matching accuracy at one candidate score threshold.
type SweepPoint struct {
	Threshold float64 `json:"threshold"`
	Accuracy  float64 `json:"accuracy"`
	LooseRate float64 `json:"loose_rate"`
}
