package matching

import (
	"fmt"
	"testing"

	"bellavista/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  Fish & Chips  ", "fish and chips"},
		{"Caesar's   Salad!", "caesars salad"},
		{"Caesar’s salad", "caesars salad"},
		{"Crème Brûlée", "creme brulee"},
		{"Coca-Cola", "coca cola"},
		{"2x Margherita-Pizza??", "2x margherita pizza"},
		{"fish&chips", "fish and chips"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"fish", "and", "chips"}, Tokenize("Fish & Chips"))
	assert.Empty(t, Tokenize("   "))
}

func TestExtractQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"pizza please", 1},
		{"3 pizzas", 3},
		{"give me 4 servings of pasta", 4},
		{"100 pizzas and 2 salads", 2},
		{"0 pizzas", 1},
		{"seventeen tiramisu", 17},
		{"a couple of salads", 2},
		{"a few garlic breads", 3},
		{"several waters", 4},
		{"half a dozen wings", 6},
		{"half dozen wings", 6},
		{"a dozen oysters", 12},
		{"an orange juice", 1},
		{"two and 5", 5},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractQuantity(tt.in))
		})
	}
}

func TestExtractQuantity_DigitsAndWordsRoundTrip(t *testing.T) {
	words := []string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
		"eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen",
		"nineteen", "twenty"}

	for q := 1; q <= 20; q++ {
		assert.Equal(t, q, ExtractQuantity(fmt.Sprintf("%d pizzas", q)), "digits %d", q)
		assert.Equal(t, q, ExtractQuantity(words[q-1]+" pizzas"), "word %s", words[q-1])
	}
}

func TestReplaceQuantityWords(t *testing.T) {
	assert.Equal(t, "I want 2 Margherita Pizza and 1 Caesar Salad",
		ReplaceQuantityWords("I want 2 Margherita Pizza and a Caesar Salad"))
	assert.Equal(t, "12 garlic bread and 3 Tiramisu", ReplaceQuantityWords("a dozen garlic bread and Three Tiramisu"))
	assert.Equal(t, "someone and others", ReplaceQuantityWords("someone and others"))
}

func TestFindMenuItem_RoundTrip(t *testing.T) {
	items := models.DefaultCatalog().Items()

	for _, item := range items {
		found := FindMenuItem(Normalize(item.Name), items)
		require.NotNil(t, found, item.Name)
		assert.Equal(t, item.ID, found.ID, item.Name)
	}
}

func TestMatcher_Layers(t *testing.T) {
	m := NewMatcher(models.DefaultCatalog().Items())

	tests := []struct {
		in       string
		want     string
		strategy Strategy
	}{
		{"margherita pizzas", "Margherita Pizza", StrategyExact},
		{"2 bottles of water", "Water Bottle", StrategyScore},
		{"water", "Water Bottle", StrategyExact},
		{"oj", "Fresh Orange Juice", StrategySynonym},
		{"fish & chips", "Fish and Chips", StrategyExact},
		{"carbonara", "Spaghetti Carbonara", StrategySynonym},
		{"pizza", "Margherita Pizza", StrategySubset},
		{"grilled", "Grilled Salmon", StrategySubset},
		{"pepperoni pizza with extra love", "Pepperoni Pizza", StrategyScore},
		{"tiramisu dessert", "Tiramisu", StrategyScore},
		{"something with garlic on top please", "Garlic Bread", StrategyLoose},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			match := m.Match(tt.in)
			require.True(t, match.Found(), "expected a match for %q", tt.in)
			assert.Equal(t, tt.want, match.Item.Name)
			assert.Equal(t, tt.strategy, match.Strategy)
		})
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	m := NewMatcher(models.DefaultCatalog().Items())

	for _, in := range []string{"", "   ", "3", "dragon roll", "sushi platter"} {
		_, ok := m.Find(in)
		assert.False(t, ok, "expected no match for %q", in)
	}
}

func TestMatcher_ThresholdIsConfigurable(t *testing.T) {
	items := models.DefaultCatalog().Items()

	strict := NewMatcher(items, WithThresholds(Thresholds{Match: 0.9, Confident: 0.5, Loose: 0.3}))
	match := strict.Match("tiramisu dessert")
	require.True(t, match.Found())
	assert.Equal(t, StrategyLoose, match.Strategy)
	assert.Equal(t, 0.9, strict.Thresholds().Match)
}

func TestMatcher_CustomTables(t *testing.T) {
	tables := DefaultTables()
	tables.Synonyms = map[string][]string{"the usual": {"Pepperoni Pizza"}}

	m := NewMatcher(models.DefaultCatalog().Items(), WithTables(tables))
	item, ok := m.Find("the usual")
	require.True(t, ok)
	assert.Equal(t, "Pepperoni Pizza", item.Name)
}

func TestMatcher_Observer(t *testing.T) {
	var seen []Strategy
	m := NewMatcher(models.DefaultCatalog().Items(), WithObserver(func(s Strategy) {
		seen = append(seen, s)
	}))

	m.Find("tiramisu")
	m.Find("dragon roll")
	assert.Equal(t, []Strategy{StrategyExact, StrategyNone}, seen)
}

func TestMatcher_Score(t *testing.T) {
	m := NewMatcher(models.DefaultCatalog().Items())

	assert.InDelta(t, 0.85, m.Score("pizza", "Margherita Pizza"), 1e-9)
	assert.InDelta(t, 1.0, m.Score("Tiramisu", "tiramisu"), 1e-9)
	assert.Equal(t, 0.0, m.Score("pizza", "Tiramisu"))
	assert.True(t, m.SharesToken("pizzas", "Pepperoni Pizza"))
	assert.False(t, m.SharesToken("salad", "Pepperoni Pizza"))
}

func TestMatcher_Category(t *testing.T) {
	m := NewMatcher(models.DefaultCatalog().Items())

	tests := map[string]string{
		"show me your pizzas":       "Pizza",
		"what desserts do you have": "Desserts",
		"any drinks?":               "Beverages",
		"I'd like some fish":        "Seafood",
		"starters please":           "Appetizers",
	}
	for in, want := range tests {
		got, ok := m.Category(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := m.Category("hello there")
	assert.False(t, ok)
}

func TestMatcherValidate(t *testing.T) {
	assert.NoError(t, NewMatcher(models.DefaultCatalog().Items()).Validate())

	m := NewMatcher([]models.MenuItem{
		{ID: "1", Name: "Water", Category: "Beverages", Price: 1},
		{ID: "2", Name: "Water Bottles", Category: "Beverages", Price: 3},
	})
	err := m.Validate()
	require.ErrorIs(t, err, ErrShadowedName)
	assert.Contains(t, err.Error(), `"Water Bottles" by "Water"`)
}

func TestNaiveSingular(t *testing.T) {
	assert.Equal(t, "pizza", NaiveSingular("pizzas"))
	assert.Equal(t, "s", NaiveSingular("s"))
	// known limitation
	assert.Equal(t, "glas", NaiveSingular("glass"))
}
