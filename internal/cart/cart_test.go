package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bellavista/internal/matching"
	"bellavista/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRecorder struct {
	mu     sync.Mutex
	orders []*models.Order
	err    error
}

func (r *recordingRecorder) RecordOrder(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order)
	return r.err
}

func newTestApplier(t *testing.T, opts ...ApplierOption) (*Applier, *MemoryStore) {
	t.Helper()
	catalog := models.DefaultCatalog()
	store := NewMemoryStore()
	return NewApplier(store, catalog, matching.NewMatcher(catalog.Items()), opts...), store
}

func addAction(items ...models.ActionItem) models.Action {
	return models.Action{Kind: models.ActionAddMultiple, Items: items}
}

func quantities(store Store) map[string]int {
	out := make(map[string]int)
	for _, line := range store.Lines() {
		out[line.Name] = line.Quantity
	}
	return out
}

func TestMemoryStore_AddMergesByID(t *testing.T) {
	store := NewMemoryStore()
	line := models.CartLine{ID: "5", Name: "Tiramisu", Price: 8.99}

	_, err := store.Add(line, 1)
	require.NoError(t, err)
	got, err := store.Add(line, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, got.Quantity)
	assert.InDelta(t, 26.97, got.TotalPrice, 1e-9)
	assert.Len(t, store.Lines(), 1)
}

func TestMemoryStore_RejectsNonPositiveQuantity(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Add(models.CartLine{ID: "5", Name: "Tiramisu"}, 0)
	assert.True(t, errors.Is(err, ErrInvalidQuantity))
	_, err = store.Add(models.CartLine{ID: "5", Name: "Tiramisu"}, -3)
	assert.True(t, errors.Is(err, ErrInvalidQuantity))
	assert.Empty(t, store.Lines())
}

func TestMemoryStore_SetQuantity(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Add(models.CartLine{ID: "5", Name: "Tiramisu", Price: 8.99}, 1)
	require.NoError(t, err)

	line, err := store.SetQuantity("5", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, line.Quantity)
	assert.InDelta(t, 35.96, line.TotalPrice, 1e-9)

	_, err = store.SetQuantity("5", 0)
	require.NoError(t, err)
	_, ok := store.Get("5")
	assert.False(t, ok)

	_, err = store.SetQuantity("5", 1)
	assert.True(t, errors.Is(err, ErrLineNotFound))
}

func TestMemoryStore_Drain(t *testing.T) {
	store := NewMemoryStore()
	_, _ = store.Add(models.CartLine{ID: "a", Name: "A", Price: 1.5}, 2)

	snapshot := store.Drain()
	assert.Equal(t, 2, snapshot.ItemCount)
	assert.InDelta(t, 3.0, snapshot.Total, 1e-9)
	assert.Empty(t, store.Lines())
	assert.True(t, store.Drain().Empty())
}

func TestMemoryStore_ConcurrentAdds(t *testing.T) {
	store := NewMemoryStore()
	line := models.CartLine{ID: "1", Name: "Margherita Pizza", Price: 18.99}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Add(line, 1)
		}()
	}
	wg.Wait()

	got, ok := store.Get("1")
	require.True(t, ok)
	assert.Equal(t, 100, got.Quantity)
	assert.Len(t, store.Lines(), 1)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	a := r.Get("s1")
	assert.Same(t, a, r.Get("s1"))
	_, ok := r.Lookup("s2")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	r.Delete("s1")
	_, ok = r.Lookup("s1")
	assert.False(t, ok)
}

func TestApplier_AddResolvesAndSumsDuplicates(t *testing.T) {
	a, store := newTestApplier(t)

	res := a.Apply(context.Background(), addAction(
		models.ActionItem{Name: "Tiramisu", Quantity: 1},
		models.ActionItem{Name: "tiramisu", Quantity: 2},
		models.ActionItem{ID: "1", Name: "whatever", Quantity: 2},
	))

	assert.True(t, res.Changed)
	assert.Equal(t, map[string]int{"Tiramisu": 3, "Margherita Pizza": 2}, quantities(store))
	assert.Equal(t, 5, res.Snapshot.ItemCount)
	assert.Empty(t, res.Unresolved)
}

func TestApplier_AddDefaultsQuantityToOne(t *testing.T) {
	a, store := newTestApplier(t)

	a.Apply(context.Background(), models.Action{Kind: models.ActionAdd, Items: []models.ActionItem{{Name: "oj"}}})
	assert.Equal(t, map[string]int{"Fresh Orange Juice": 1}, quantities(store))
}

func TestApplier_AddSyntheticItem(t *testing.T) {
	a, store := newTestApplier(t)

	for i := 0; i < 2; i++ {
		res := a.Apply(context.Background(), addAction(models.ActionItem{Name: "Dragon Roll", Quantity: 1}))
		assert.Equal(t, []string{"Dragon Roll"}, res.Unresolved)
	}

	line, ok := store.Get("custom-dragon-roll")
	require.True(t, ok)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, 12.99, line.Price)
	assert.True(t, line.Custom)
}

func TestApplier_AddUnavailableOffersAlternatives(t *testing.T) {
	catalog, err := models.NewCatalog([]models.MenuItem{
		{ID: "1", Name: "Margherita Pizza", Category: "Pizza", Price: 18.99, Available: false},
		{ID: "8", Name: "Pepperoni Pizza", Category: "Pizza", Price: 21.99, Available: true},
		{ID: "5", Name: "Tiramisu", Category: "Desserts", Price: 8.99, Available: true},
	})
	require.NoError(t, err)
	store := NewMemoryStore()
	a := NewApplier(store, catalog, matching.NewMatcher(catalog.Items()))

	res := a.Apply(context.Background(), addAction(models.ActionItem{Name: "margherita pizza", Quantity: 1}))

	assert.False(t, res.Changed)
	assert.Empty(t, store.Lines())
	require.Len(t, res.Unavailable, 1)
	assert.Equal(t, "Margherita Pizza", res.Unavailable[0].Item.Name)
	require.Len(t, res.Unavailable[0].Alternatives, 1)
	assert.Equal(t, "Pepperoni Pizza", res.Unavailable[0].Alternatives[0].Name)
	assert.Contains(t, res.Message, "currently unavailable")
}

func TestApplier_PartialAddEchoesNotFound(t *testing.T) {
	a, _ := newTestApplier(t)

	res := a.Apply(context.Background(), models.Action{
		Kind:          models.ActionAddMultiplePartial,
		Items:         []models.ActionItem{{Name: "Tiramisu", Quantity: 1}},
		NotFoundItems: []string{"sushi"},
	})
	assert.Equal(t, []string{"sushi"}, res.NotFound)
	assert.Contains(t, res.Message, "couldn't find sushi")
}

func TestApplier_RemoveAllByType(t *testing.T) {
	a, store := newTestApplier(t)
	a.Apply(context.Background(), addAction(
		models.ActionItem{Name: "Margherita Pizza", Quantity: 2},
		models.ActionItem{Name: "Pepperoni Pizza", Quantity: 1},
		models.ActionItem{Name: "Tiramisu", Quantity: 1},
	))

	res := a.Apply(context.Background(), models.Action{Kind: models.ActionRemoveAll, TargetItem: "pizza"})

	assert.True(t, res.Changed)
	assert.Equal(t, map[string]int{"Tiramisu": 1}, quantities(store))
}

func TestApplier_RemoveAllByCategoryAlias(t *testing.T) {
	a, store := newTestApplier(t)
	a.Apply(context.Background(), addAction(
		models.ActionItem{Name: "Water Bottle", Quantity: 2},
		models.ActionItem{Name: "Fresh Orange Juice", Quantity: 1},
		models.ActionItem{Name: "Tiramisu", Quantity: 1},
	))

	a.Apply(context.Background(), models.Action{Kind: models.ActionRemoveAll, TargetItem: "drinks"})
	assert.Equal(t, map[string]int{"Tiramisu": 1}, quantities(store))
}

func TestApplier_RemoveIsIdempotent(t *testing.T) {
	a, store := newTestApplier(t)
	a.Apply(context.Background(), addAction(models.ActionItem{Name: "Tiramisu", Quantity: 1}))

	remove := models.Action{Kind: models.ActionRemove, Items: []models.ActionItem{{Name: "tiramisu"}}}
	first := a.Apply(context.Background(), remove)
	second := a.Apply(context.Background(), remove)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, []string{"tiramisu"}, second.NotFound)
	assert.Empty(t, store.Lines())
}

func TestApplier_RemoveDecrementsWhenQuantityIsSmaller(t *testing.T) {
	a, store := newTestApplier(t)
	a.Apply(context.Background(), addAction(models.ActionItem{Name: "Margherita Pizza", Quantity: 3}))

	res := a.Apply(context.Background(), models.Action{
		Kind:  models.ActionRemove,
		Items: []models.ActionItem{{Name: "margherita", Quantity: 1}},
	})
	assert.Equal(t, "Removed 1 Margherita Pizza from your cart.", res.Message)
	assert.Equal(t, map[string]int{"Margherita Pizza": 2}, quantities(store))
}

func TestApplier_Update(t *testing.T) {
	a, store := newTestApplier(t)
	a.Apply(context.Background(), addAction(models.ActionItem{Name: "Margherita Pizza", Quantity: 1}))

	res := a.Apply(context.Background(), models.Action{
		Kind: models.ActionUpdate, TargetItem: "margherita", Operation: models.OperationIncrease, Quantity: 2,
	})
	assert.True(t, res.Changed)
	assert.Equal(t, map[string]int{"Margherita Pizza": 3}, quantities(store))

	a.Apply(context.Background(), models.Action{
		Kind: models.ActionUpdate, TargetItem: "Margherita Pizza", Operation: models.OperationDecrease, Quantity: 5,
	})
	assert.Empty(t, store.Lines())

	res = a.Apply(context.Background(), models.Action{
		Kind: models.ActionUpdate, TargetItem: "tiramisu", Operation: models.OperationIncrease,
	})
	assert.False(t, res.Changed)
	assert.Equal(t, []string{"tiramisu"}, res.NotFound)
}

func TestApplier_ClearCart(t *testing.T) {
	a, store := newTestApplier(t)
	a.Apply(context.Background(), addAction(models.ActionItem{Name: "Tiramisu", Quantity: 1}))

	res := a.Apply(context.Background(), models.Action{Kind: models.ActionClearCart})
	assert.True(t, res.Changed)
	assert.Empty(t, store.Lines())
	assert.True(t, res.Snapshot.Empty())
}

func TestApplier_PlaceOrder(t *testing.T) {
	recorder := &recordingRecorder{}
	placedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a, store := newTestApplier(t,
		WithSession("session-1"),
		WithRecorders(recorder),
		WithOrderNumbers(func() string { return "ORD-1" }),
		WithClock(func() time.Time { return placedAt }),
	)
	_, err := store.Add(models.CartLine{ID: "x", Name: "House Special", Price: 10}, 2)
	require.NoError(t, err)

	res := a.Apply(context.Background(), models.Action{Kind: models.ActionPlaceOrder})

	require.NotNil(t, res.Receipt)
	assert.Equal(t, "ORD-1", res.Receipt.OrderNumber)
	assert.Equal(t, "session-1", res.Receipt.SessionID)
	assert.InDelta(t, 20.0, res.Receipt.Subtotal, 1e-9)
	assert.InDelta(t, 1.6, res.Receipt.Tax, 1e-9)
	assert.InDelta(t, 21.6, res.Receipt.Total, 1e-9)
	assert.Equal(t, placedAt, res.Receipt.PlacedAt)
	assert.Equal(t, "15-20 minutes", res.Receipt.EstimatedTime)
	assert.Empty(t, store.Lines())
	assert.True(t, res.Snapshot.Empty())
	require.Len(t, recorder.orders, 1)
}

func TestApplier_PlaceOrderEmptyCart(t *testing.T) {
	recorder := &recordingRecorder{}
	a, _ := newTestApplier(t, WithRecorders(recorder))

	res := a.Apply(context.Background(), models.Action{Kind: models.ActionPlaceOrder})
	assert.Nil(t, res.Receipt)
	assert.False(t, res.Changed)
	assert.Contains(t, res.Message, "Your cart is empty")
	assert.Empty(t, recorder.orders)
}

func TestApplier_RecorderErrorsAreNotFatal(t *testing.T) {
	recorder := &recordingRecorder{err: errors.New("broker down")}
	a, store := newTestApplier(t, WithRecorders(recorder))
	a.Apply(context.Background(), addAction(models.ActionItem{Name: "Tiramisu", Quantity: 1}))

	res := a.Apply(context.Background(), models.Action{Kind: models.ActionPlaceOrder})
	require.NotNil(t, res.Receipt)
	assert.Empty(t, store.Lines())
}

func TestApplier_NonCartActionsLeaveCartAlone(t *testing.T) {
	var observed []models.ActionKind
	a, store := newTestApplier(t, WithActionObserver(func(kind models.ActionKind, _ bool) {
		observed = append(observed, kind)
	}))
	a.Apply(context.Background(), addAction(models.ActionItem{Name: "Tiramisu", Quantity: 1}))

	res := a.Apply(context.Background(), models.Action{Kind: models.ActionShowMenu})
	assert.False(t, res.Changed)
	assert.Equal(t, 1, res.Snapshot.ItemCount)
	assert.Len(t, store.Lines(), 1)
	assert.Equal(t, []models.ActionKind{models.ActionAddMultiple, models.ActionShowMenu}, observed)
}

func TestSyntheticID(t *testing.T) {
	assert.Equal(t, "custom-dragon-roll", SyntheticID("  Dragon   Roll!"))
}
