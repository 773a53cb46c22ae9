package intent

import (
	"testing"

	"bellavista/internal/matching"
	"bellavista/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return NewParser(matching.NewMatcher(models.DefaultCatalog().Items()))
}

func TestParseItems_ExplicitQuantities(t *testing.T) {
	p := newTestParser()

	items := p.ParseItems("I want 2 Margherita Pizza and a Caesar Salad")
	require.Len(t, items, 2)
	assert.Equal(t, models.ParsedItem{Name: "Margherita Pizza", Quantity: 2}, items[0])
	assert.Equal(t, models.ParsedItem{Name: "Caesar Salad", Quantity: 1}, items[1])
}

func TestParseItems_NumberWords(t *testing.T) {
	p := newTestParser()

	items := p.ParseItems("three tiramisu, two bruschetta")
	require.Len(t, items, 2)
	assert.Equal(t, "tiramisu", items[0].Name)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "bruschetta", items[1].Name)
	assert.Equal(t, 2, items[1].Quantity)
}

func TestParseItems_ConjunctionInsideName(t *testing.T) {
	p := newTestParser()

	items := p.ParseItems("fish and chips and tiramisu")
	require.Len(t, items, 2)
	assert.Equal(t, "fish and chips", items[0].Name)
	assert.Equal(t, "tiramisu", items[1].Name)
}

func TestParseItems_LeadingVerb(t *testing.T) {
	p := newTestParser()

	items := p.ParseItems("remove 2 pepperoni pizza")
	require.Len(t, items, 1)
	assert.Equal(t, models.ItemActionRemove, items[0].Action)
	assert.Equal(t, 2, items[0].Quantity)

	items = p.ParseItems("remove the pepperoni pizza")
	require.Len(t, items, 1)
	assert.Equal(t, "pepperoni pizza", items[0].Name)
	assert.Equal(t, models.ItemActionRemove, items[0].Action)
}

func TestParseItems_UnresolvedFragment(t *testing.T) {
	p := newTestParser()

	items := p.ParseItems("I want dragon roll")
	require.Len(t, items, 1)
	assert.Equal(t, "dragon roll", items[0].Name)
	assert.Equal(t, 1, items[0].Quantity)

	assert.Empty(t, p.ParseItems("   "))
}

func TestParseItems_NamesBeforeFirstQuantity(t *testing.T) {
	p := newTestParser()

	items := p.ParseItems("fish and chips and a tiramisu")
	require.Len(t, items, 2)
	assert.Equal(t, models.ParsedItem{Name: "fish and chips", Quantity: 1}, items[0])
	assert.Equal(t, models.ParsedItem{Name: "tiramisu", Quantity: 1}, items[1])

	items = p.ParseItems("caesar salad and 2 tiramisu")
	require.Len(t, items, 2)
	assert.Equal(t, models.ParsedItem{Name: "caesar salad", Quantity: 1}, items[0])
	assert.Equal(t, models.ParsedItem{Name: "tiramisu", Quantity: 2}, items[1])

	items = p.ParseItems("hi there, 2 tiramisu")
	require.Len(t, items, 1)
	assert.Equal(t, "tiramisu", items[0].Name)
}

func TestParseItems_IgnoresOutOfRangeQuantities(t *testing.T) {
	p := newTestParser()

	items := p.ParseItems("100 pizzas and 2 salads")
	require.Len(t, items, 1)
	assert.Equal(t, "salads", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestCleanCandidate(t *testing.T) {
	assert.Equal(t, "Margherita Pizza", CleanCandidate("please give me the Margherita Pizza and"))
	assert.Equal(t, "fish and chips", CleanCandidate("and fish and chips!"))
	assert.Equal(t, "", CleanCandidate("I would like some"))
}

func TestDetectMood(t *testing.T) {
	tests := []struct {
		in        string
		emotion   string
		intensity string
	}{
		{"one tiramisu please", models.EmotionNeutral, models.IntensityLow},
		{"great, thanks", models.EmotionPositive, models.IntensityMedium},
		{"this is terrible", models.EmotionNegative, models.IntensityLow},
		{"this is really terrible!!", models.EmotionNegative, models.IntensityHigh},
		{"THIS IS SO WRONG", models.EmotionNegative, models.IntensityHigh},
		{"not bad", models.EmotionPositive, models.IntensityLow},
		{"not good", models.EmotionNegative, models.IntensityLow},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			mood := DetectMood(tt.in)
			assert.Equal(t, tt.emotion, mood.Emotion)
			assert.Equal(t, tt.intensity, mood.Intensity)
		})
	}
}

func TestEmpathyFor(t *testing.T) {
	assert.Equal(t, models.EmpathyHigh, EmpathyFor(models.Mood{Emotion: models.EmotionNegative, Intensity: models.IntensityHigh}))
	assert.Equal(t, models.EmpathyHigh, EmpathyFor(models.Mood{Emotion: models.EmotionNegative, Intensity: models.IntensityMedium}))
	assert.Equal(t, models.EmpathyStandard, EmpathyFor(models.Mood{Emotion: models.EmotionNegative, Intensity: models.IntensityLow}))
	assert.Equal(t, models.EmpathyStandard, EmpathyFor(models.Mood{Emotion: models.EmotionPositive, Intensity: models.IntensityHigh}))
}

func TestFallbackResponder_Actions(t *testing.T) {
	f := NewFallbackResponder(newTestParser())
	full := models.NewCartSnapshot([]models.CartLine{{ID: "5", Name: "Tiramisu", Price: 8.99, Quantity: 1, TotalPrice: 8.99}})

	tests := []struct {
		in   string
		want models.ActionKind
	}{
		{"clear chat", models.ActionClearChat},
		{"let's start over", models.ActionClearChat},
		{"remove everything from my cart", models.ActionClearCart},
		{"remove all items", models.ActionClearCart},
		{"remove all pizza", models.ActionRemoveAll},
		{"empty my cart", models.ActionClearCart},
		{"show my cart", models.ActionShowCart},
		{"what's in my cart?", models.ActionShowCart},
		{"place my order", models.ActionPlaceOrder},
		{"I'm ready to checkout", models.ActionCheckout},
		{"decrease margherita pizza by 2", models.ActionUpdate},
		{"add one more tiramisu", models.ActionUpdate},
		{"remove the pepperoni pizza", models.ActionRemove},
		{"I want 2 Margherita Pizza and a Caesar Salad", models.ActionAddMultiple},
		{"one tiramisu please", models.ActionAdd},
		{"add margherita pizza and dragon roll", models.ActionAddMultiplePartial},
		{"I want dragon roll", models.ActionItemNotFound},
		{"I want 3 pizzas", models.ActionBulkMenu},
		{"2 pizzas and 3 drinks", models.ActionMultiCategoryBulk},
		{"I want pizza", models.ActionShowCategory},
		{"I'd like to see the desserts", models.ActionShowCategory},
		{"hello", models.ActionGreeting},
		{"hi", models.ActionGreeting},
		{"hey there!", models.ActionGreeting},
		{"good evening", models.ActionGreeting},
		{"hi, one tiramisu please", models.ActionAdd},
		{"menu please", models.ActionShowMenu},
		{"show me the menu", models.ActionShowMenu},
		{"what do you have", models.ActionShowMenu},
		{"qwerty", models.ActionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			reply := f.Respond(tt.in, full, models.EmpathyStandard)
			assert.Equal(t, tt.want, reply.Action.Kind)
			assert.True(t, reply.Fallback)
			assert.NotEmpty(t, reply.Text)
		})
	}
}

func TestFallbackResponder_GreetingNeverOrders(t *testing.T) {
	f := NewFallbackResponder(newTestParser())

	for _, text := range []string{"hi", "hey", "hiya", "hello"} {
		reply := f.Respond(text, models.CartSnapshot{}, models.EmpathyStandard)
		assert.Equal(t, models.ActionGreeting, reply.Action.Kind, text)
		assert.Empty(t, reply.Action.Items, text)
	}
}

func TestFallbackResponder_ShortScoredFragmentNotAdded(t *testing.T) {
	f := NewFallbackResponder(newTestParser())

	item, category := f.resolve("hi")
	assert.Nil(t, item)
	assert.Empty(t, category)

	item, _ = f.resolve("tiramisu")
	require.NotNil(t, item)
	assert.Equal(t, "Tiramisu", item.Name)
}

func TestFallbackResponder_AddResolvesCatalogItems(t *testing.T) {
	f := NewFallbackResponder(newTestParser())

	reply := f.Respond("I want 2 Margherita Pizza and a Caesar Salad", models.CartSnapshot{}, models.EmpathyStandard)
	require.Equal(t, models.ActionAddMultiple, reply.Action.Kind)
	assert.Equal(t, []models.ActionItem{
		{ID: "1", Name: "Margherita Pizza", Quantity: 2, Price: 18.99},
		{ID: "3", Name: "Caesar Salad", Quantity: 1, Price: 14.99},
	}, reply.Action.Items)
	assert.Equal(t, "Excellent! I've added 2 Margherita Pizza and 1 Caesar Salad to your cart.", reply.Text)
	assert.Equal(t, 1000, reply.Action.ResponseDelay)
}

func TestFallbackResponder_BulkAndMultiCategory(t *testing.T) {
	f := NewFallbackResponder(newTestParser())

	reply := f.Respond("I want 3 pizzas", models.CartSnapshot{}, models.EmpathyStandard)
	assert.Equal(t, "Pizza", reply.Action.Category)
	assert.Equal(t, 3, reply.Action.BulkQuantity)

	reply = f.Respond("2 pizzas and 3 drinks", models.CartSnapshot{}, models.EmpathyStandard)
	assert.Equal(t, []models.CategoryQuantity{
		{Category: "Pizza", Quantity: 2},
		{Category: "Beverages", Quantity: 3},
	}, reply.Action.MultiCategories)
}

func TestFallbackResponder_UpdateAndRemoveTargets(t *testing.T) {
	f := NewFallbackResponder(newTestParser())
	cart := models.CartSnapshot{}

	reply := f.Respond("decrease margherita pizza by 2", cart, models.EmpathyStandard)
	assert.Equal(t, "Margherita Pizza", reply.Action.TargetItem)
	assert.Equal(t, models.OperationDecrease, reply.Action.Operation)
	assert.Equal(t, 2, reply.Action.Quantity)

	reply = f.Respond("remove all pizza", cart, models.EmpathyStandard)
	assert.Equal(t, "pizza", reply.Action.TargetItem)

	reply = f.Respond("remove the pepperoni pizza", cart, models.EmpathyStandard)
	require.Len(t, reply.Action.Items, 1)
	assert.Equal(t, models.ActionItem{ID: "8", Name: "Pepperoni Pizza"}, reply.Action.Items[0])

	reply = f.Respond("remove a tiramisu", cart, models.EmpathyStandard)
	require.Len(t, reply.Action.Items, 1)
	assert.Equal(t, 1, reply.Action.Items[0].Quantity)
}

func TestFallbackResponder_EmptyCart(t *testing.T) {
	f := NewFallbackResponder(newTestParser())

	reply := f.Respond("place my order", models.CartSnapshot{}, models.EmpathyStandard)
	assert.Equal(t, models.ActionText, reply.Action.Kind)
	assert.Contains(t, reply.Text, "cart is empty")

	reply = f.Respond("show my cart", models.CartSnapshot{}, models.EmpathyStandard)
	assert.Contains(t, reply.Text, "currently empty")
}

func TestFallbackResponder_Empathy(t *testing.T) {
	f := NewFallbackResponder(newTestParser())

	reply := f.Respond("hello", models.CartSnapshot{}, models.EmpathyHigh)
	assert.Contains(t, reply.Text, "I'm sorry for the trouble.")
}

func TestDefaultResponse(t *testing.T) {
	assert.Equal(t, "Great! I've added 2 Tiramisu to your cart.",
		DefaultResponse(models.Action{Kind: models.ActionAdd, Items: []models.ActionItem{{Name: "Tiramisu", Quantity: 2}}}))
	assert.Equal(t, "Here are our desserts options.", DefaultResponse(models.Action{Kind: models.ActionShowCategory, Category: "Desserts"}))
	assert.NotEmpty(t, DefaultResponse(models.Action{Kind: models.ActionUnrecognized, RawKind: "dance"}))
}
