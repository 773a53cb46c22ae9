package matching

import (
	"errors"
	"fmt"
	"strings"

	"bellavista/internal/models"
)

// Strategy identifies the layer of the matcher that produced a match.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyExact
	StrategySynonym
	StrategySubset
	StrategyScore
	StrategyLoose
)

func (s Strategy) String() string {
	switch s {
	case StrategyExact:
		return "exact"
	case StrategySynonym:
		return "synonym"
	case StrategySubset:
		return "subset"
	case StrategyScore:
		return "score"
	case StrategyLoose:
		return "loose"
	default:
		return "none"
	}
}

// Confident reports whether the strategy is strong enough to merge words across conjunctions.
func (s Strategy) Confident() bool {
	return s == StrategyExact || s == StrategySynonym || s == StrategySubset
}

// Thresholds are the tunable token-overlap cutoffs.
type Thresholds struct {
	// Match is the minimum score accepted by the scoring layer.
	Match float64 `yaml:"match"`
	// Confident is the minimum score for removing a single cart line by name.
	Confident float64 `yaml:"confident"`
	// Loose is the minimum score for the remove-all sweep.
	Loose float64 `yaml:"loose"`
}

// DefaultThresholds are the empirically chosen cutoffs.
var DefaultThresholds = Thresholds{Match: 0.45, Confident: 0.5, Loose: 0.3}

// ErrShadowedName is reported for catalogs in which a name cleans to the key of an earlier
// item, e.g. "Water" and "Water Bottle". The later item can never be matched exactly.
var ErrShadowedName = errors.New("menu item name shadowed by an earlier item")

// Match is the outcome of resolving free text against the catalog.
type Match struct {
	Item     models.MenuItem
	Strategy Strategy
	Score    float64
}

// Found reports whether an item was resolved.
func (m Match) Found() bool {
	return m.Strategy != StrategyNone
}

type entry struct {
	item     models.MenuItem
	key      string
	tokens   []string
	tokenSet map[string]bool
}

// Matcher resolves free-text names against a catalog using layered strategies:
// exact, synonym, subset, weighted token overlap and a loose fallback.
type Matcher struct {
	entries    []entry
	byKey      map[string]int
	synonyms   map[string][]string
	aliases    map[string]string
	categories []string
	tables     Tables
	thresholds Thresholds
	observer   func(Strategy)
	shadowed   []string
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithTables replaces the default synonym, unit and category tables.
func WithTables(t Tables) Option {
	return func(m *Matcher) {
		m.tables = t
	}
}

// WithThresholds overrides the score cutoffs.
func WithThresholds(t Thresholds) Option {
	return func(m *Matcher) {
		m.thresholds = t
	}
}

// WithObserver registers a callback invoked with the strategy of every Match call.
func WithObserver(fn func(Strategy)) Option {
	return func(m *Matcher) {
		m.observer = fn
	}
}

// NewMatcher indexes the catalog items. Item order decides ties.
func NewMatcher(items []models.MenuItem, opts ...Option) *Matcher {
	m := &Matcher{
		tables:     DefaultTables(),
		thresholds: DefaultThresholds,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tables.Singularize == nil {
		m.tables.Singularize = NaiveSingular
	}

	m.byKey = make(map[string]int, len(items))
	seenCategory := make(map[string]bool)
	for _, item := range items {
		key := m.Clean(item.Name)
		if key == "" {
			key = Normalize(item.Name)
		}
		tokens := strings.Fields(key)
		e := entry{item: item, key: key, tokens: tokens, tokenSet: toSet(tokens)}
		if first, dup := m.byKey[key]; dup {
			m.shadowed = append(m.shadowed, fmt.Sprintf("%q by %q", item.Name, m.entries[first].item.Name))
		} else {
			m.byKey[key] = len(m.entries)
		}
		m.entries = append(m.entries, e)

		if !seenCategory[item.Category] {
			seenCategory[item.Category] = true
			m.categories = append(m.categories, item.Category)
		}
	}

	m.synonyms = make(map[string][]string, len(m.tables.Synonyms))
	for alias, names := range m.tables.Synonyms {
		m.synonyms[m.Clean(alias)] = names
	}
	m.aliases = make(map[string]string, len(m.tables.CategoryAliases))
	for alias, category := range m.tables.CategoryAliases {
		m.aliases[m.Clean(alias)] = category
	}
	return m
}

// Validate reports ErrShadowedName when two catalog names clean to the same key.
func (m *Matcher) Validate() error {
	if len(m.shadowed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrShadowedName, strings.Join(m.shadowed, ", "))
}

// Thresholds returns the active cutoffs.
func (m *Matcher) Thresholds() Thresholds {
	return m.thresholds
}

// Clean normalizes text, drops unit words and bare numerals, and singularizes each token.
func (m *Matcher) Clean(text string) string {
	tokens := Tokenize(text)
	out := tokens[:0]
	for _, tok := range tokens {
		if m.tables.UnitWords[tok] || isNumeral(tok) {
			continue
		}
		out = append(out, m.singular(tok))
	}
	return strings.Join(out, " ")
}

func (m *Matcher) singular(tok string) string {
	if m.tables.Singularize == nil {
		return tok
	}
	return m.tables.Singularize(tok)
}

// Find returns the catalog item text refers to.
func (m *Matcher) Find(text string) (models.MenuItem, bool) {
	match := m.Match(text)
	return match.Item, match.Found()
}

// Match resolves text and reports which layer produced the result.
func (m *Matcher) Match(text string) Match {
	match := m.match(text)
	if m.observer != nil {
		m.observer(match.Strategy)
	}
	return match
}

func (m *Matcher) match(text string) Match {
	query := m.Clean(text)
	if query == "" || len(m.entries) == 0 {
		return Match{}
	}

	if idx, ok := m.byKey[query]; ok {
		return Match{Item: m.entries[idx].item, Strategy: StrategyExact, Score: 1}
	}

	if names, ok := m.synonyms[query]; ok {
		for _, name := range names {
			if idx, ok := m.byKey[m.Clean(name)]; ok {
				return Match{Item: m.entries[idx].item, Strategy: StrategySynonym, Score: 1}
			}
		}
	}

	queryTokens := uniqueTokens(strings.Fields(query))
	for _, e := range m.entries {
		if containsAll(e.tokenSet, queryTokens) {
			return Match{Item: e.item, Strategy: StrategySubset, Score: 1}
		}
	}

	best, bestScore := -1, 0.0
	for i, e := range m.entries {
		score := overlapScore(queryTokens, query, e.tokenSet, e.key)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 && bestScore >= m.thresholds.Match {
		return Match{Item: m.entries[best].item, Strategy: StrategyScore, Score: bestScore}
	}

	for _, e := range m.entries {
		if strings.Contains(e.key, query) || strings.Contains(query, e.key) {
			return Match{Item: e.item, Strategy: StrategyLoose, Score: overlapScore(queryTokens, query, e.tokenSet, e.key)}
		}
	}
	for _, e := range m.entries {
		for _, tok := range queryTokens {
			if e.tokenSet[tok] {
				return Match{Item: e.item, Strategy: StrategyLoose, Score: overlapScore(queryTokens, query, e.tokenSet, e.key)}
			}
		}
	}

	return Match{}
}

// Score computes the weighted token overlap between a query and a name after cleaning both.
func (m *Matcher) Score(query, name string) float64 {
	q := m.Clean(query)
	n := m.Clean(name)
	if q == "" || n == "" {
		return 0
	}
	nameTokens := strings.Fields(n)
	return overlapScore(uniqueTokens(strings.Fields(q)), q, toSet(nameTokens), n)
}

// SharesToken reports whether query and name have a cleaned token in common.
func (m *Matcher) SharesToken(query, name string) bool {
	nameSet := toSet(strings.Fields(m.Clean(name)))
	for _, tok := range strings.Fields(m.Clean(query)) {
		if nameSet[tok] {
			return true
		}
	}
	return false
}

// Category finds the catalog category mentioned in text, either by its label or an alias.
func (m *Matcher) Category(text string) (string, bool) {
	cleaned := m.Clean(text)
	if cleaned == "" {
		return "", false
	}
	for _, category := range m.categories {
		key := m.Clean(category)
		if key != "" && containsPhrase(cleaned, key) {
			return category, true
		}
	}
	for _, tok := range strings.Fields(cleaned) {
		if category, ok := m.aliases[tok]; ok && m.hasCategory(category) {
			return category, true
		}
	}
	return "", false
}

// CategoryOf returns the category when text names a category and nothing else,
// as in "pizzas" or "drinks".
func (m *Matcher) CategoryOf(text string) (string, bool) {
	cleaned := m.Clean(text)
	if cleaned == "" {
		return "", false
	}
	for _, category := range m.categories {
		if m.Clean(category) == cleaned {
			return category, true
		}
	}
	if category, ok := m.aliases[cleaned]; ok && m.hasCategory(category) {
		return category, true
	}
	return "", false
}

func (m *Matcher) hasCategory(category string) bool {
	for _, c := range m.categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// FindMenuItem resolves text against catalog with the default tables and thresholds.
func FindMenuItem(text string, catalog []models.MenuItem) *models.MenuItem {
	item, ok := NewMatcher(catalog).Find(text)
	if !ok {
		return nil
	}
	return &item
}

// overlapScore is 0.7 x precision + 0.3 x recall over unique tokens, lifted to 0.5 when
// either string contains the other.
func overlapScore(queryTokens []string, query string, nameSet map[string]bool, name string) float64 {
	if len(queryTokens) == 0 || len(nameSet) == 0 {
		return 0
	}
	shared := 0
	for _, tok := range queryTokens {
		if nameSet[tok] {
			shared++
		}
	}
	precision := float64(shared) / float64(len(queryTokens))
	recall := float64(shared) / float64(len(nameSet))
	score := 0.7*precision + 0.3*recall

	if strings.Contains(name, query) || strings.Contains(query, name) {
		if score < 0.5 {
			score = 0.5
		}
	}
	return score
}

func containsAll(set map[string]bool, tokens []string) bool {
	for _, tok := range tokens {
		if !set[tok] {
			return false
		}
	}
	return len(tokens) > 0
}

func containsPhrase(text, phrase string) bool {
	return text == phrase ||
		strings.HasPrefix(text, phrase+" ") ||
		strings.HasSuffix(text, " "+phrase) ||
		strings.Contains(text, " "+phrase+" ")
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func isNumeral(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
