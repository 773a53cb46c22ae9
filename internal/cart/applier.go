package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bellavista/internal/idgen"
	"bellavista/internal/matching"
	"bellavista/internal/models"
)

// Settings are the pricing and receipt parameters of the applier.
type Settings struct {
	TaxRate        float64
	SyntheticPrice float64
	EstimatedTime  string
}

// DefaultSettings returns 8% tax, a 12.99 synthetic price and a 15-20 minute estimate.
func DefaultSettings() Settings {
	return Settings{TaxRate: 0.08, SyntheticPrice: 12.99, EstimatedTime: "15-20 minutes"}
}

// Recorder receives placed orders, e.g. the receipt ledger or the event publisher.
type Recorder interface {
	RecordOrder(ctx context.Context, order *models.Order) error
}

// Unavailable is a requested item that exists but cannot be ordered right now.
type Unavailable struct {
	Item         models.MenuItem   `json:"item"`
	Alternatives []models.MenuItem `json:"alternatives"`
}

// Result describes what applying an action did to the cart.
type Result struct {
	Message     string              `json:"message,omitempty"`
	Changed     bool                `json:"changed"`
	Receipt     *models.Order       `json:"receipt,omitempty"`
	Added       []models.CartLine   `json:"added,omitempty"`
	Unresolved  []string            `json:"unresolved,omitempty"`
	NotFound    []string            `json:"not_found,omitempty"`
	Unavailable []Unavailable       `json:"unavailable,omitempty"`
	Snapshot    models.CartSnapshot `json:"cart"`
}

// Applier turns structured actions into cart mutations for one session.
type Applier struct {
	store     Store
	catalog   *models.Catalog
	matcher   *matching.Matcher
	sessionID string
	settings  Settings
	recorders []Recorder
	numbers   func() string
	now       func() time.Time
	observer  func(kind models.ActionKind, changed bool)
	logger    *zap.Logger
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithSession tags receipts with a session id.
func WithSession(id string) ApplierOption {
	return func(a *Applier) { a.sessionID = id }
}

// WithSettings overrides tax, synthetic price and estimated time.
func WithSettings(s Settings) ApplierOption {
	return func(a *Applier) { a.settings = s }
}

// WithRecorders registers the sinks notified of placed orders.
func WithRecorders(r ...Recorder) ApplierOption {
	return func(a *Applier) { a.recorders = append(a.recorders, r...) }
}

// WithOrderNumbers replaces the order number generator.
func WithOrderNumbers(fn func() string) ApplierOption {
	return func(a *Applier) { a.numbers = fn }
}

// WithClock replaces time.Now for receipts.
func WithClock(fn func() time.Time) ApplierOption {
	return func(a *Applier) { a.now = fn }
}

// WithActionObserver registers a callback invoked after every applied action.
func WithActionObserver(fn func(kind models.ActionKind, changed bool)) ApplierOption {
	return func(a *Applier) { a.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ApplierOption {
	return func(a *Applier) { a.logger = l }
}

// NewApplier creates an applier mutating store.
func NewApplier(store Store, catalog *models.Catalog, matcher *matching.Matcher, opts ...ApplierOption) *Applier {
	a := &Applier{
		store:    store,
		catalog:  catalog,
		matcher:  matcher,
		settings: DefaultSettings(),
		numbers:  idgen.Default().OrderNumber,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// Store returns the cart the applier mutates.
func (a *Applier) Store() Store {
	return a.store
}

// Apply executes a cart action. Actions that do not touch the cart return the current
// snapshot unchanged. Misses are reported in the result, never as errors.
func (a *Applier) Apply(ctx context.Context, action models.Action) Result {
	var res Result
	switch action.Kind {
	case models.ActionAdd, models.ActionAddMultiple, models.ActionAddMultiplePartial:
		res = a.add(action)
	case models.ActionItemNotFound:
		res.NotFound = action.NotFoundItems
		if len(res.NotFound) > 0 {
			res.Message = fmt.Sprintf("I couldn't find %s on our menu.", strings.Join(res.NotFound, " and "))
		}
	case models.ActionRemove:
		res = a.remove(action)
	case models.ActionRemoveAll:
		res = a.removeAll(action)
	case models.ActionUpdate:
		res = a.update(action)
	case models.ActionClearCart:
		res = a.clear()
	case models.ActionPlaceOrder:
		res = a.placeOrder(ctx)
	}

	if res.Receipt == nil {
		res.Snapshot = a.store.Snapshot()
	}
	if a.observer != nil {
		a.observer(action.Kind, res.Changed)
	}
	return res
}

func (a *Applier) add(action models.Action) Result {
	var res Result
	for _, item := range action.Items {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		line, menuItem, resolved := a.resolve(item)
		if line.ID == "" {
			continue
		}
		if resolved && !menuItem.Available {
			res.Unavailable = append(res.Unavailable, Unavailable{
				Item:         menuItem,
				Alternatives: a.catalog.Alternatives(menuItem),
			})
			continue
		}
		if !resolved {
			res.Unresolved = append(res.Unresolved, line.Name)
		}

		added, err := a.store.Add(line, quantity)
		if err != nil {
			a.logger.Warn("failed to add cart line", zap.String("item", line.Name), zap.Error(err))
			continue
		}
		added.Quantity = quantity
		added.Recompute()
		res.Added = append(res.Added, added)
		res.Changed = true
	}
	res.NotFound = action.NotFoundItems
	res.Message = addMessage(res)
	return res
}

// resolve maps an action item onto a cart line: catalog id first, then the matcher, then a
// synthetic line keyed by the normalized name.
func (a *Applier) resolve(item models.ActionItem) (models.CartLine, models.MenuItem, bool) {
	if menuItem, ok := a.catalog.ByID(item.ID); ok {
		return lineFor(menuItem), menuItem, true
	}
	name := strings.TrimSpace(item.Name)
	if name == "" {
		return models.CartLine{}, models.MenuItem{}, false
	}
	if menuItem, ok := a.matcher.Find(name); ok {
		return lineFor(menuItem), menuItem, true
	}

	price := item.Price
	if price <= 0 {
		price = a.settings.SyntheticPrice
	}
	return models.CartLine{
		ID:     SyntheticID(name),
		Name:   name,
		Price:  price,
		Custom: true,
	}, models.MenuItem{}, false
}

// SyntheticID returns the line id used for items that are not on the menu.
func SyntheticID(name string) string {
	return "custom-" + strings.ReplaceAll(matching.Normalize(name), " ", "-")
}

func lineFor(item models.MenuItem) models.CartLine {
	return models.CartLine{ID: item.ID, Name: item.Name, Price: item.Price}
}

func (a *Applier) remove(action models.Action) Result {
	var (
		res     Result
		removed []string
	)
	for _, item := range action.Items {
		line, ok := a.findLine(item.ID, item.Name, a.matcher.Thresholds().Confident)
		if !ok {
			res.NotFound = append(res.NotFound, displayName(item))
			continue
		}
		if item.Quantity > 0 && item.Quantity < line.Quantity {
			if _, err := a.store.SetQuantity(line.ID, line.Quantity-item.Quantity); err == nil {
				removed = append(removed, fmt.Sprintf("%d %s", item.Quantity, line.Name))
				res.Changed = true
			}
			continue
		}
		if a.store.Remove(line.ID) {
			removed = append(removed, line.Name)
			res.Changed = true
		}
	}

	switch {
	case len(removed) > 0 && len(res.NotFound) > 0:
		res.Message = fmt.Sprintf("Removed %s from your cart. I couldn't find %s in your cart.",
			strings.Join(removed, " and "), strings.Join(res.NotFound, " and "))
	case len(removed) > 0:
		res.Message = fmt.Sprintf("Removed %s from your cart.", strings.Join(removed, " and "))
	case len(res.NotFound) > 0:
		res.Message = fmt.Sprintf("I couldn't find %s in your cart.", strings.Join(res.NotFound, " and "))
	default:
		res.Message = "Tell me which item you'd like to remove."
	}
	return res
}

func (a *Applier) removeAll(action models.Action) Result {
	var res Result
	target := strings.TrimSpace(action.TargetItem)
	if target == "" && len(action.Items) > 0 {
		target = action.Items[0].Name
	}
	if target == "" {
		res.Message = "Tell me which items you'd like to remove."
		return res
	}

	category, hasCategory := a.matcher.CategoryOf(target)
	if !hasCategory {
		category, hasCategory = a.matcher.Category(target)
	}
	normTarget := matching.Normalize(target)
	loose := a.matcher.Thresholds().Loose

	var removed []string
	for _, line := range a.store.Lines() {
		normName := matching.Normalize(line.Name)
		hit := a.matcher.Score(target, line.Name) >= loose ||
			strings.Contains(normName, normTarget) || strings.Contains(normTarget, normName)
		if !hit && hasCategory {
			if item, ok := a.catalog.ByID(line.ID); ok && strings.EqualFold(item.Category, category) {
				hit = true
			}
		}
		if hit && a.store.Remove(line.ID) {
			removed = append(removed, line.Name)
		}
	}

	if len(removed) == 0 {
		res.NotFound = []string{target}
		res.Message = fmt.Sprintf("I couldn't find any %s in your cart.", target)
		return res
	}
	res.Changed = true
	res.Message = fmt.Sprintf("Removed %s from your cart.", strings.Join(removed, " and "))
	return res
}

func (a *Applier) update(action models.Action) Result {
	var res Result
	id, name := "", action.TargetItem
	if len(action.Items) > 0 {
		id = action.Items[0].ID
		if name == "" {
			name = action.Items[0].Name
		}
	}

	line, ok := a.findLine(id, name, a.matcher.Thresholds().Confident)
	if !ok {
		line, ok = a.findLine("", name, a.matcher.Thresholds().Loose)
	}
	if !ok {
		target := name
		if target == "" {
			target = "that item"
		}
		res.NotFound = []string{target}
		res.Message = fmt.Sprintf("I couldn't find %s in your cart.", target)
		return res
	}

	delta := action.Quantity
	if delta <= 0 {
		delta = 1
	}
	quantity := line.Quantity + delta
	if action.Operation == models.OperationDecrease {
		quantity = line.Quantity - delta
	}

	updated, err := a.store.SetQuantity(line.ID, quantity)
	if err != nil {
		res.NotFound = []string{line.Name}
		res.Message = fmt.Sprintf("I couldn't find %s in your cart.", line.Name)
		return res
	}
	res.Changed = true
	if updated.Quantity == 0 {
		res.Message = fmt.Sprintf("Removed %s from your cart.", line.Name)
	} else {
		res.Message = fmt.Sprintf("Updated %s to %d.", line.Name, updated.Quantity)
	}
	return res
}

func (a *Applier) clear() Result {
	res := Result{Message: "Your cart has been cleared."}
	res.Changed = len(a.store.Lines()) > 0
	a.store.Clear()
	return res
}

func (a *Applier) placeOrder(ctx context.Context) Result {
	snapshot := a.store.Drain()
	if snapshot.Empty() {
		return Result{
			Message:  "Your cart is empty. Please add some items before placing an order.",
			Snapshot: snapshot,
		}
	}

	order := models.NewOrder(a.numbers(), a.sessionID, snapshot.Lines, a.settings.TaxRate, a.now(), a.settings.EstimatedTime)
	for _, r := range a.recorders {
		if err := r.RecordOrder(ctx, order); err != nil {
			a.logger.Warn("failed to record order",
				zap.String("order", order.OrderNumber),
				zap.String("session", a.sessionID),
				zap.Error(err))
		}
	}

	return Result{
		Message:  fmt.Sprintf("Order %s placed! Total: $%.2f", order.OrderNumber, order.Total),
		Changed:  true,
		Receipt:  order,
		Snapshot: models.CartSnapshot{},
	}
}

// findLine locates a cart line by id, else by the best name score at or above min.
func (a *Applier) findLine(id, name string, min float64) (models.CartLine, bool) {
	if id != "" {
		if line, ok := a.store.Get(id); ok {
			return line, true
		}
	}
	if strings.TrimSpace(name) == "" {
		return models.CartLine{}, false
	}

	var (
		best      models.CartLine
		bestScore float64
		found     bool
	)
	for _, line := range a.store.Lines() {
		score := a.matcher.Score(name, line.Name)
		if score >= min && score > bestScore {
			best, bestScore, found = line, score, true
		}
	}
	return best, found
}

func displayName(item models.ActionItem) string {
	if item.Name != "" {
		return item.Name
	}
	return item.ID
}

func addMessage(res Result) string {
	var parts []string
	if len(res.Added) > 0 {
		names := make([]string, 0, len(res.Added))
		for _, line := range res.Added {
			names = append(names, fmt.Sprintf("%d %s", line.Quantity, line.Name))
		}
		parts = append(parts, fmt.Sprintf("Added %s to your cart.", strings.Join(names, " and ")))
	}
	if len(res.Unresolved) > 0 {
		parts = append(parts, fmt.Sprintf("%s isn't on our menu, so it was added as a custom item.",
			strings.Join(res.Unresolved, " and ")))
	}
	for _, u := range res.Unavailable {
		parts = append(parts, fmt.Sprintf("Sorry, %s is currently unavailable.", u.Item.Name))
	}
	if len(res.NotFound) > 0 {
		parts = append(parts, fmt.Sprintf("I couldn't find %s on our menu.", strings.Join(res.NotFound, " and ")))
	}
	if len(parts) == 0 {
		return "Tell me which item you'd like to add."
	}
	return strings.Join(parts, " ")
}
