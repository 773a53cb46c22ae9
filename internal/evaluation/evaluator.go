// Package evaluation scores the menu matcher, item parser and keyword responder against
// labelled corpora. Scores feed the monitor and guide threshold tuning.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"bellavista/internal/intent"
	"bellavista/internal/models"
)

// ErrScenarioNotFound is returned for an unknown scenario id.
var ErrScenarioNotFound = errors.New("scenario not found")

// Recorder receives the scores of every evaluated scenario.
type Recorder interface {
	RecordEvaluationResult(suite string, scores map[string]float64)
}

// Evaluator runs labelled scenarios against the ordering engine.
type Evaluator struct {
	scenarios map[string]*Scenario
	parser    *intent.Parser
	responder intent.Responder
	cart      models.CartSnapshot
	recorder  Recorder
	logger    *zap.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithRecorder forwards scores to r.
func WithRecorder(r Recorder) Option {
	return func(e *Evaluator) { e.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator creates an evaluator over parser and its matcher, loaded with the built-in
// scenarios.
func NewEvaluator(parser *intent.Parser, opts ...Option) *Evaluator {
	e := &Evaluator{
		scenarios: make(map[string]*Scenario),
		parser:    parser,
		responder: intent.NewFallbackResponder(parser),
		// intents such as checkout depend on a non-empty cart
		cart: models.NewCartSnapshot([]models.CartLine{
			{ID: "5", Name: "Tiramisu", Price: 8.99, Quantity: 1, TotalPrice: 8.99},
		}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.loadScenarios()
	return e
}

// loadScenarios registers the built-in corpora.
func (e *Evaluator) loadScenarios() {
	e.scenarios["menu_matching"] = &Scenario{
		ID:          "menu_matching",
		Name:        "Menu Matching",
		Description: "Item names, plurals, synonyms and partial names resolved against the menu.",
		Match: []MatchCase{
			{Query: "margherita pizzas", Want: "Margherita Pizza"},
			{Query: "2 bottles of water", Want: "Water Bottle"},
			{Query: "water", Want: "Water Bottle"},
			{Query: "oj", Want: "Fresh Orange Juice"},
			{Query: "fish & chips", Want: "Fish and Chips"},
			{Query: "carbonara", Want: "Spaghetti Carbonara"},
			{Query: "pizza", Want: "Margherita Pizza"},
			{Query: "pepperoni pizza with extra love", Want: "Pepperoni Pizza"},
			{Query: "tiramisu dessert", Want: "Tiramisu"},
			{Query: "dragon roll"},
			{Query: "sushi platter"},
			{Query: "3"},
		},
	}

	e.scenarios["order_parsing"] = &Scenario{
		ID:          "order_parsing",
		Name:        "Order Parsing",
		Description: "Quantities and item names split out of free-text orders.",
		Parse: []ParseCase{
			{Text: "I want 2 Margherita Pizza and a Caesar Salad", Items: []models.ParsedItem{
				{Name: "Margherita Pizza", Quantity: 2}, {Name: "Caesar Salad", Quantity: 1},
			}},
			{Text: "three tiramisu, two bruschetta", Items: []models.ParsedItem{
				{Name: "Tiramisu", Quantity: 3}, {Name: "Bruschetta", Quantity: 2},
			}},
			{Text: "fish and chips and tiramisu", Items: []models.ParsedItem{
				{Name: "Fish and Chips", Quantity: 1}, {Name: "Tiramisu", Quantity: 1},
			}},
			{Text: "fish and chips and a tiramisu", Items: []models.ParsedItem{
				{Name: "Fish and Chips", Quantity: 1}, {Name: "Tiramisu", Quantity: 1},
			}},
			{Text: "100 pizzas and 2 salads", Items: []models.ParsedItem{
				{Name: "salads", Quantity: 2},
			}},
			{Text: "I want dragon roll", Items: []models.ParsedItem{
				{Name: "dragon roll", Quantity: 1},
			}},
		},
	}

	e.scenarios["intent_detection"] = &Scenario{
		ID:          "intent_detection",
		Name:        "Intent Detection",
		Description: "Actions chosen by the keyword responder when the AI service is down.",
		Intent: []IntentCase{
			{Text: "clear chat", Action: models.ActionClearChat},
			{Text: "remove all pizza", Action: models.ActionRemoveAll},
			{Text: "empty my cart", Action: models.ActionClearCart},
			{Text: "show my cart", Action: models.ActionShowCart},
			{Text: "place my order", Action: models.ActionPlaceOrder},
			{Text: "I'm ready to checkout", Action: models.ActionCheckout},
			{Text: "decrease margherita pizza by 2", Action: models.ActionUpdate},
			{Text: "remove the pepperoni pizza", Action: models.ActionRemove},
			{Text: "one tiramisu please", Action: models.ActionAdd},
			{Text: "I want 2 Margherita Pizza and a Caesar Salad", Action: models.ActionAddMultiple},
			{Text: "I want dragon roll", Action: models.ActionItemNotFound},
			{Text: "I want 3 pizzas", Action: models.ActionBulkMenu},
			{Text: "2 pizzas and 3 drinks", Action: models.ActionMultiCategoryBulk},
			{Text: "I'd like to see the desserts", Action: models.ActionShowCategory},
			{Text: "hello", Action: models.ActionGreeting},
			{Text: "hi", Action: models.ActionGreeting},
			{Text: "show me the menu", Action: models.ActionShowMenu},
		},
	}

	e.scenarios["noisy_input"] = &Scenario{
		ID:          "noisy_input",
		Name:        "Noisy Input",
		Description: "Shouting, punctuation, accents and dishes the restaurant does not serve.",
		Match: []MatchCase{
			{Query: "MARGHERITA PIZZA!!!", Want: "Margherita Pizza"},
			{Query: "tiramisú", Want: "Tiramisu"},
			{Query: "salmon", Want: "Grilled Salmon"},
			{Query: "garlic bread", Want: "Garlic Bread"},
			{Query: "crème brûlée"},
			{Query: "cola"},
		},
		Intent: []IntentCase{
			{Text: "HELLO", Action: models.ActionGreeting},
			{Text: "qwerty", Action: models.ActionUnknown},
		},
	}
}

// LoadScenarios adds the scenarios of a YAML file of the form `scenarios: [...]`, replacing
// built-in ones with the same id.
func (e *Evaluator) LoadScenarios(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read scenarios: %w", err)
	}

	var doc struct {
		Scenarios []*Scenario `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse scenarios: %w", err)
	}
	for _, s := range doc.Scenarios {
		if s.ID == "" {
			return fmt.Errorf("scenario %q has no id", s.Name)
		}
		e.scenarios[s.ID] = s
	}
	return nil
}

// HasScenario checks if a scenario exists
func (e *Evaluator) HasScenario(id string) bool {
	_, exists := e.scenarios[id]
	return exists
}

// GetScenarios returns all available scenarios ordered by id
func (e *Evaluator) GetScenarios() []*Scenario {
	scenarios := make([]*Scenario, 0, len(e.scenarios))
	for _, s := range e.scenarios {
		scenarios = append(scenarios, s)
	}
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].ID < scenarios[j].ID })
	return scenarios
}

// Evaluate runs one scenario and records its scores.
func (e *Evaluator) Evaluate(ctx context.Context, id string) (*EvaluationResult, error) {
	scenario, exists := e.scenarios[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &EvaluationResult{
		Scenario: id,
		Cases:    scenario.Size(),
		Metrics:  make(map[string]float64),
	}

	merge := func(scores map[string]float64, failures []Failure) {
		for k, v := range scores {
			result.Metrics[k] = v
		}
		result.Failures = append(result.Failures, failures...)
	}
	merge(scoreMatches(e.parser.Matcher(), scenario.Match))
	merge(scoreParses(e.parser, scenario.Parse))
	merge(scoreIntents(e.responder, scenario.Intent, e.cart))

	if result.Cases > 0 {
		result.Metrics["overall_score"] = ratio(result.Cases-len(result.Failures), result.Cases)
	}
	result.Duration = time.Since(start)

	if e.recorder != nil {
		e.recorder.RecordEvaluationResult(id, result.Metrics)
	}
	e.logger.Info("scenario evaluated",
		zap.String("scenario", id),
		zap.Int("cases", result.Cases),
		zap.Int("failures", len(result.Failures)),
		zap.Float64("overall_score", result.Metrics["overall_score"]))
	return result, nil
}

// EvaluateAll runs every scenario in id order.
func (e *Evaluator) EvaluateAll(ctx context.Context) ([]*EvaluationResult, error) {
	var results []*EvaluationResult
	for _, s := range e.GetScenarios() {
		result, err := e.Evaluate(ctx, s.ID)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// MatchCases returns the lookup cases of every scenario, for threshold sweeps.
func (e *Evaluator) MatchCases() []MatchCase {
	var cases []MatchCase
	for _, s := range e.GetScenarios() {
		cases = append(cases, s.Match...)
	}
	return cases
}
