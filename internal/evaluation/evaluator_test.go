package evaluation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bellavista/internal/intent"
	"bellavista/internal/matching"
	"bellavista/internal/models"
)

type captureRecorder struct {
	suites map[string]map[string]float64
}

func (c *captureRecorder) RecordEvaluationResult(suite string, scores map[string]float64) {
	if c.suites == nil {
		c.suites = make(map[string]map[string]float64)
	}
	c.suites[suite] = scores
}

func newTestEvaluator(opts ...Option) *Evaluator {
	parser := intent.NewParser(matching.NewMatcher(models.DefaultCatalog().Items()))
	return NewEvaluator(parser, opts...)
}

func TestNewEvaluator(t *testing.T) {
	evaluator := newTestEvaluator()

	if evaluator == nil {
		t.Fatal("NewEvaluator() returned nil")
	}

	if len(evaluator.scenarios) == 0 {
		t.Error("NewEvaluator() created an evaluator with no scenarios")
	}
}

func TestHasScenario(t *testing.T) {
	evaluator := newTestEvaluator()

	for _, scenario := range []string{"menu_matching", "order_parsing", "intent_detection", "noisy_input"} {
		if !evaluator.HasScenario(scenario) {
			t.Errorf("HasScenario(%q) = false, want true", scenario)
		}
	}

	if evaluator.HasScenario("non_existent_scenario") {
		t.Error("HasScenario(\"non_existent_scenario\") = true, want false")
	}
}

func TestEvaluate_BuiltInCorpora(t *testing.T) {
	evaluator := newTestEvaluator()
	ctx := context.Background()

	tests := []struct {
		scenario string
		metric   string
	}{
		{"menu_matching", "match_accuracy"},
		{"order_parsing", "parse_exact"},
		{"intent_detection", "intent_accuracy"},
	}
	for _, tt := range tests {
		result, err := evaluator.Evaluate(ctx, tt.scenario)
		if err != nil {
			t.Fatalf("Evaluate(%q) error = %v", tt.scenario, err)
		}
		if got := result.Metrics[tt.metric]; got != 1 {
			t.Errorf("Evaluate(%q) %s = %v, want 1 (failures: %+v)", tt.scenario, tt.metric, got, result.Failures)
		}
		if got := result.Metrics["overall_score"]; got != 1 {
			t.Errorf("Evaluate(%q) overall_score = %v, want 1", tt.scenario, got)
		}
	}
}

func TestEvaluate_UnknownScenario(t *testing.T) {
	evaluator := newTestEvaluator()

	_, err := evaluator.Evaluate(context.Background(), "non_existent_scenario")
	if !errors.Is(err, ErrScenarioNotFound) {
		t.Errorf("Evaluate() error = %v, want ErrScenarioNotFound", err)
	}
}

func TestEvaluate_CanceledContext(t *testing.T) {
	evaluator := newTestEvaluator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := evaluator.Evaluate(ctx, "menu_matching"); !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() error = %v, want context.Canceled", err)
	}
}

func TestEvaluateAll_Records(t *testing.T) {
	recorder := &captureRecorder{}
	evaluator := newTestEvaluator(WithRecorder(recorder))

	results, err := evaluator.EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAll() error = %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("EvaluateAll() returned %d results, want 4", len(results))
	}
	if results[0].Scenario != "intent_detection" {
		t.Errorf("results[0].Scenario = %q, want intent_detection", results[0].Scenario)
	}
	for _, r := range results {
		score, ok := recorder.suites[r.Scenario]["overall_score"]
		if !ok {
			t.Errorf("no overall_score recorded for %q", r.Scenario)
		}
		if score < 0 || score > 1 {
			t.Errorf("overall_score for %q = %v, want within [0, 1]", r.Scenario, score)
		}
	}
}

func TestScoreMatches_CountsErrors(t *testing.T) {
	m := matching.NewMatcher(models.DefaultCatalog().Items())
	cases := []MatchCase{
		{Query: "tiramisu", Want: "Tiramisu"},
		{Query: "tiramisu", Want: "Bruschetta"},
		{Query: "dragon roll"},
		{Query: "water", Want: ""},
	}

	scores, failures := scoreMatches(m, cases)
	if len(failures) != 2 {
		t.Fatalf("scoreMatches() failures = %d, want 2", len(failures))
	}
	if got := scores["match_accuracy"]; got != 0.5 {
		t.Errorf("match_accuracy = %v, want 0.5", got)
	}
	if got := scores["false_match_rate"]; got != 0.5 {
		t.Errorf("false_match_rate = %v, want 0.5", got)
	}
	// TP=1, FP=2 (wrong item and false match), FN=1 (wrong item)
	if got := scores["match_precision"]; got != 1.0/3 {
		t.Errorf("match_precision = %v, want 1/3", got)
	}
	if got := scores["match_recall"]; got != 0.5 {
		t.Errorf("match_recall = %v, want 0.5", got)
	}
}

func TestCounts(t *testing.T) {
	c := Counts{TP: 3, FP: 1, FN: 1}
	if c.Precision() != 0.75 || c.Recall() != 0.75 || c.F1() != 0.75 {
		t.Errorf("Counts %+v = P %v R %v F1 %v, want 0.75 each", c, c.Precision(), c.Recall(), c.F1())
	}
	if (Counts{}).F1() != 0 {
		t.Error("empty Counts F1 should be 0")
	}
}

func TestSweepThresholds(t *testing.T) {
	evaluator := newTestEvaluator()
	points := SweepThresholds(models.DefaultCatalog().Items(), evaluator.MatchCases(), []float64{0.3, 0.45, 0.9})

	if len(points) != 3 {
		t.Fatalf("SweepThresholds() returned %d points, want 3", len(points))
	}
	if points[2].LooseRate <= points[1].LooseRate {
		t.Errorf("a strict threshold should push more lookups to the loose layer: %+v", points)
	}

	best, ok := BestThreshold(points)
	if !ok {
		t.Fatal("BestThreshold() found nothing")
	}
	if best.Threshold == 0.9 {
		t.Errorf("BestThreshold() = %+v, want a lower threshold", best)
	}

	if _, ok := BestThreshold(nil); ok {
		t.Error("BestThreshold(nil) should report false")
	}
}

func TestLoadScenarios(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	data := []byte(`scenarios:
  - id: house
    name: House Favourites
    match:
      - query: the carbonara
        want: Spaghetti Carbonara
    parse:
      - text: 2 tiramisu
        items:
          - name: Tiramisu
            quantity: 2
    intent:
      - text: show my cart
        action: show_cart
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	evaluator := newTestEvaluator()
	if err := evaluator.LoadScenarios(path); err != nil {
		t.Fatalf("LoadScenarios() error = %v", err)
	}
	if !evaluator.HasScenario("house") {
		t.Fatal("loaded scenario missing")
	}

	result, err := evaluator.Evaluate(context.Background(), "house")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Cases != 3 {
		t.Errorf("Cases = %d, want 3", result.Cases)
	}

	if err := evaluator.LoadScenarios(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadScenarios() on a missing file should fail")
	}
}
