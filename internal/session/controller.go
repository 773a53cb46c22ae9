// Package session runs the per-session conversation: turns, conversational modes, voice I/O
// and ordered message emission.
package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"bellavista/internal/cart"
	"bellavista/internal/gateway"
	"bellavista/internal/idgen"
	"bellavista/internal/intent"
	"bellavista/internal/matching"
	"bellavista/internal/models"
)

var (
	// ErrClosed is returned by operations on a controller that has been closed.
	ErrClosed = errors.New("session closed")
	// ErrNoRecognizer is returned when voice capture is requested without a recognizer.
	ErrNoRecognizer = errors.New("speech recognition not available")
)

// State is the controller's input state.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
)

// Turn sources reported to the Observer
const (
	SourceAI         = "ai"
	SourceFallback   = "fallback"
	SourceLocal      = "local"
	SourceSuperseded = "superseded"
)

const subscriberBuffer = 256

var (
	cancelModePattern = regexp.MustCompile(`(?i)\b(?:cancel|stop|never\s*mind|nevermind|exit|done|quit)\b`)
	affirmPattern     = regexp.MustCompile(`(?i)^\s*(?:yes|yeah|yep|yup|sure|ok|okay|of course|please|y)\b`)
	declinePattern    = regexp.MustCompile(`(?i)^\s*(?:no|nope|nah|no thanks|not really|n)\b`)
)

// Observer receives turn and emission events, e.g. for metrics.
type Observer interface {
	ObserveTurn(source string, elapsed time.Duration)
	ObserveDropped()
}

// Status is a point-in-time view of the controller flags.
type Status struct {
	State     State  `json:"state"`
	Typing    bool   `json:"typing"`
	Speaking  bool   `json:"speaking"`
	Listening bool   `json:"listening"`
	Interim   string `json:"interim,omitempty"`
	Turn      uint64 `json:"turn"`
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Service     gateway.Service
	Fallback    intent.Responder
	Parser      *intent.Parser
	Catalog     *models.Catalog
	Applier     *cart.Applier
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Observer    Observer
	// DelayScale multiplies every response delay; 0 delivers immediately.
	DelayScale float64
	Logger     *zap.Logger
}

// Controller owns one chat session.
type Controller struct {
	id      string
	deps    Deps
	matcher *matching.Matcher
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	typing     bool
	speaking   bool
	interim    string
	conv       models.ConversationState
	turn       uint64
	cancelTurn context.CancelFunc
	transcript []models.ChatMessage
	subs       map[int]chan models.ChatMessage
	nextSub    int
	closed     bool

	dispatchMu sync.Mutex
	emitter    *emitter
	closeOnce  sync.Once
}

type turn struct {
	id    uint64
	ctx   context.Context
	text  string
	voice bool
	conv  models.ConversationState
	start time.Time
	spoke bool
}

// NewController starts a session controller and its emitter goroutine.
func NewController(id string, deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Catalog == nil {
		deps.Catalog = models.DefaultCatalog()
	}
	if deps.Parser == nil {
		deps.Parser = intent.NewParser(matching.NewMatcher(deps.Catalog.Items()))
	}
	if deps.Fallback == nil {
		deps.Fallback = intent.NewFallbackResponder(deps.Parser)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:      id,
		deps:    deps,
		matcher: deps.Parser.Matcher(),
		logger:  deps.Logger.With(zap.String("session", id)),
		ctx:     ctx,
		cancel:  cancel,
		state:   StateIdle,
		conv:    models.NewConversationState(),
		subs:    make(map[int]chan models.ChatMessage),
	}
	c.emitter = newEmitter(subscriberBuffer, c.deliver, c.drop)
	return c
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.id
}

// Cart returns the session cart.
func (c *Controller) Cart() cart.Store {
	return c.deps.Applier.Store()
}

// HandleInput runs one user turn. It returns once the turn's messages are queued; use Flush
// to wait for their delivery.
func (c *Controller) HandleInput(ctx context.Context, text string, voice bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	tr, err := c.beginTurn(text, voice)
	if err != nil {
		return err
	}
	c.emit(tr, c.newMessage(models.MessageFromUser, text, models.MessageText, nil, tr.id), 0, false)

	reply, source, handled := c.local(tr)
	if !handled {
		reply, source = c.ask(ctx, tr)
	}
	if !c.dispatch(tr, reply) {
		c.finishTurn(tr, SourceSuperseded)
		return nil
	}
	c.finishTurn(tr, source)
	return nil
}

func (c *Controller) beginTurn(text string, voice bool) (*turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.cancelTurn != nil {
		c.cancelTurn()
	}
	c.turn++
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelTurn = cancel
	c.state = StateProcessing
	c.typing = true
	c.interim = ""

	if text != "" {
		mood := intent.DetectMood(text)
		c.conv.UserMood = &mood
		c.conv.EmpathyLevel = intent.EmpathyFor(mood)
	}

	return &turn{
		id:    c.turn,
		ctx:   ctx,
		text:  text,
		voice: voice,
		conv:  c.conv.Clone(),
		start: time.Now(),
	}, nil
}

func (c *Controller) finishTurn(tr *turn, source string) {
	c.mu.Lock()
	if c.turn == tr.id {
		c.state = StateIdle
		c.typing = false
	}
	c.mu.Unlock()

	if c.deps.Observer != nil {
		c.deps.Observer.ObserveTurn(source, time.Since(tr.start))
	}
}

// local answers turns that depend only on conversational state: the add-on question and
// item selection while a bulk mode is active.
func (c *Controller) local(tr *turn) (models.Reply, string, bool) {
	if tr.conv.AwaitingAddonAnswer {
		switch {
		case affirmPattern.MatchString(tr.text):
			return models.Reply{
				Text:   "Great! Here are our add-ons. Pick anything you'd like, then say checkout when you're ready.",
				Action: models.Action{Kind: models.ActionConfirmAddons},
			}, SourceLocal, true
		case declinePattern.MatchString(tr.text):
			return models.Reply{
				Text:   "No problem! Let me place your order.",
				Action: models.Action{Kind: models.ActionCancelAddons},
			}, SourceLocal, true
		}
		c.updateConv(func(s *models.ConversationState) { s.AwaitingAddonAnswer = false })
	}

	if tr.conv.BulkQuantity == nil && tr.conv.MultiCategory == nil {
		return models.Reply{}, "", false
	}
	if cancelModePattern.MatchString(tr.text) {
		c.updateConv(func(s *models.ConversationState) {
			s.BulkQuantity = nil
			s.MultiCategory = nil
		})
		tr.conv.BulkQuantity, tr.conv.MultiCategory = nil, nil
		return models.Reply{
			Text:   "No problem! I've stopped bulk ordering. What would you like to do next?",
			Action: models.TextAction(),
		}, SourceLocal, true
	}

	if items := c.selectItems(tr.text); len(items) > 0 {
		kind := models.ActionAdd
		if len(items) > 1 {
			kind = models.ActionAddMultiple
		}
		return models.Reply{Action: models.Action{Kind: kind, Items: items}}, SourceLocal, true
	}
	return models.Reply{}, "", false
}

// selectItems resolves every item named in text, or returns nil when any is uncertain.
func (c *Controller) selectItems(text string) []models.ActionItem {
	parsed := c.deps.Parser.ParseItems(text)
	items := make([]models.ActionItem, 0, len(parsed))
	for _, p := range parsed {
		match := c.matcher.Match(p.Name)
		if !match.Found() || match.Strategy == matching.StrategyLoose {
			return nil
		}
		items = append(items, models.ActionItem{
			ID:       match.Item.ID,
			Name:     match.Item.Name,
			Quantity: p.Quantity,
			Price:    match.Item.Price,
		})
	}
	return items
}

// ask sends the turn to the AI service and falls back to local rules when it is unavailable.
func (c *Controller) ask(ctx context.Context, tr *turn) (models.Reply, string) {
	snapshot := c.Cart().Snapshot()
	if c.deps.Service == nil {
		return c.deps.Fallback.Respond(tr.text, snapshot, tr.conv.EmpathyLevel), SourceFallback
	}

	callCtx, cancel := context.WithCancel(tr.ctx)
	defer cancel()
	if ctx != nil {
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
	}

	reply, err := c.deps.Service.Send(callCtx, gateway.Request{
		Message:      tr.text,
		SessionID:    c.id,
		Cart:         snapshot,
		Mood:         tr.conv.UserMood,
		EmpathyLevel: tr.conv.EmpathyLevel,
	})
	if err == nil {
		return c.repair(tr, reply), SourceAI
	}
	if tr.ctx.Err() != nil {
		return models.Reply{}, SourceSuperseded
	}

	c.logger.Warn("ai service unavailable, answering locally", zap.Uint64("turn", tr.id), zap.Error(err))
	return c.deps.Fallback.Respond(tr.text, snapshot, tr.conv.EmpathyLevel), SourceFallback
}

// repair fills add and remove actions that arrived without usable items from the user text.
func (c *Controller) repair(tr *turn, reply models.Reply) models.Reply {
	action := reply.Action
	if !(action.IsAdd() || action.Kind == models.ActionRemove) || hasUsableItems(action.Items) {
		return reply
	}

	var items []models.ActionItem
	for _, p := range c.deps.Parser.ParseItems(tr.text) {
		items = append(items, models.ActionItem{Name: p.Name, Quantity: p.Quantity})
	}
	if len(items) == 0 {
		c.logger.Debug("dropping action without items", zap.String("action", action.Name()))
		reply.Action = models.TextAction()
		return reply
	}
	reply.Action.Items = items
	return reply
}

func hasUsableItems(items []models.ActionItem) bool {
	for _, item := range items {
		if strings.TrimSpace(item.Name) != "" || item.ID != "" {
			return true
		}
	}
	return false
}

// commit claims the session for tr unless a newer turn has started. A turn that changes the
// cart is detached from cancellation so its confirmations and receipt are always delivered.
func (c *Controller) commit(tr *turn, detach bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.turn != tr.id || tr.ctx.Err() != nil {
		return false
	}
	if detach {
		tr.ctx = context.WithoutCancel(tr.ctx)
	}
	return true
}

// mutates reports whether dispatching a can change the cart or place an order.
func mutates(a models.Action) bool {
	return a.IsCartMutation() || a.Kind == models.ActionCheckout || a.Kind == models.ActionCancelAddons
}

// dispatch applies the reply's action and queues the resulting messages. It reports false,
// without touching the cart, when tr was superseded.
func (c *Controller) dispatch(tr *turn, reply models.Reply) bool {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	if !c.commit(tr, mutates(reply.Action)) {
		return false
	}

	if reply.Emotion != nil {
		mood := *reply.Emotion
		c.updateConv(func(s *models.ConversationState) {
			s.UserMood = &mood
			s.EmpathyLevel = intent.EmpathyFor(mood)
		})
	}

	action := reply.Action
	delay := c.delay(action)
	say := func(content string, mt models.MessageType, payload interface{}) {
		if content == "" && payload == nil {
			return
		}
		speak := tr.voice && !tr.spoke && content != ""
		if speak {
			tr.spoke = true
		}
		c.emit(tr, c.newMessage(models.MessageFromAssistant, content, mt, payload, tr.id), delay, speak)
		delay = 0
	}
	text := reply.Text
	if strings.TrimSpace(text) == "" {
		text = intent.DefaultResponse(action)
	}

	switch action.Kind {
	case models.ActionAdd, models.ActionAddMultiple, models.ActionAddMultiplePartial:
		c.scaleForBulk(&action)
		if reply.Text == "" {
			text = intent.DefaultResponse(action)
		}
		res := c.deps.Applier.Apply(tr.ctx, action)
		say(text, models.MessageText, nil)
		c.sayCartResult(res, say)
		if res.Changed {
			c.advanceMulti(say)
		}

	case models.ActionRemove, models.ActionRemoveAll, models.ActionUpdate, models.ActionClearCart:
		res := c.deps.Applier.Apply(tr.ctx, action)
		say(text, models.MessageText, nil)
		say(res.Message, models.MessageCart, res.Snapshot)

	case models.ActionShowMenu, models.ActionUnknown:
		say(text, models.MessageText, nil)
		say("Our menu", models.MessageMenu, c.menuPayload())

	case models.ActionShowCategory:
		say(text, models.MessageText, nil)
		if category, ok := c.resolveCategory(action.Category, tr.text); ok {
			say(category, models.MessageCategory, models.CategoryPayload{
				Category: category,
				Items:    c.deps.Catalog.InCategory(category),
			})
		} else {
			say("Our menu", models.MessageMenu, c.menuPayload())
		}

	case models.ActionShowCart:
		snapshot := c.Cart().Snapshot()
		say(text, models.MessageText, nil)
		if snapshot.Empty() {
			say("Your cart is empty.", models.MessageCart, snapshot)
		} else {
			say(snapshot.Summary(), models.MessageCart, snapshot)
		}

	case models.ActionCheckout:
		c.checkout(tr, text, say)

	case models.ActionAskAddons:
		c.updateConv(func(s *models.ConversationState) {
			s.AskedForAddons = true
			s.AwaitingAddonAnswer = true
		})
		say(text, models.MessageText, nil)

	case models.ActionConfirmAddons:
		c.updateConv(func(s *models.ConversationState) {
			s.AskedForAddons = true
			s.AwaitingAddonAnswer = false
		})
		say(text, models.MessageText, nil)
		say("Add-ons", models.MessageAddons, models.MenuPayload{Categories: c.deps.Catalog.Addons()})

	case models.ActionCancelAddons, models.ActionPlaceOrder:
		c.updateConv(func(s *models.ConversationState) { s.AwaitingAddonAnswer = false })
		say(text, models.MessageText, nil)
		c.placeOrder(tr, say)

	case models.ActionBulkQuantity, models.ActionBulkMenu:
		c.startBulk(tr, action, text, say)

	case models.ActionMultiCategoryBulk:
		c.startMulti(action, text, say)

	case models.ActionClearChat:
		c.clear(tr)
		say("Chat cleared! How can I help you today?", models.MessageText, nil)

	case models.ActionItemNotFound:
		res := c.deps.Applier.Apply(tr.ctx, action)
		if strings.TrimSpace(reply.Text) == "" && res.Message != "" {
			text = res.Message
		}
		say(text, models.MessageText, nil)

	default:
		// greeting, plain text and unrecognized actions only display text
		say(text, models.MessageText, nil)
	}
	return true
}

func (c *Controller) sayCartResult(res cart.Result, say func(string, models.MessageType, interface{})) {
	if res.Changed {
		say(res.Message, models.MessageCartConfirm, res.Snapshot)
	}
	for _, u := range res.Unavailable {
		say(fmt.Sprintf("Sorry, %s is currently unavailable. Here are some alternatives:", u.Item.Name),
			models.MessageAlternatives, models.AlternativesPayload{Requested: u.Item.Name, Alternatives: u.Alternatives})
	}
	if !res.Changed && len(res.Unavailable) == 0 && res.Message != "" {
		say(res.Message, models.MessageText, nil)
	}
}

// scaleForBulk multiplies item quantities by the active bulk or multi-category quantity.
func (c *Controller) scaleForBulk(action *models.Action) {
	conv := c.Conversation()
	factor := 0
	if step, ok := conv.MultiCategory.Current(); ok {
		factor = step.Quantity
	} else if conv.BulkQuantity != nil {
		factor = conv.BulkQuantity.Quantity
	}
	if factor <= 1 {
		return
	}

	items := make([]models.ActionItem, len(action.Items))
	for i, item := range action.Items {
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		item.Quantity *= factor
		items[i] = item
	}
	action.Items = items
}

// advanceMulti moves a multi-category order to its next step after a selection.
func (c *Controller) advanceMulti(say func(string, models.MessageType, interface{})) {
	var (
		next     models.CategoryQuantity
		hasNext  bool
		payload  models.MultiBulkPayload
		finished bool
	)
	c.updateConv(func(s *models.ConversationState) {
		if s.MultiCategory == nil {
			return
		}
		s.MultiCategory.CurrentIndex++
		next, hasNext = s.MultiCategory.Current()
		if !hasNext {
			s.MultiCategory = nil
			finished = true
			return
		}
		payload = models.MultiBulkPayload{
			Categories:   append([]models.CategoryQuantity(nil), s.MultiCategory.Categories...),
			CurrentIndex: s.MultiCategory.CurrentIndex,
		}
	})

	switch {
	case hasNext:
		payload.Items = c.availableIn(next.Category)
		say(fmt.Sprintf("Now let's select from %s (%d items).", next.Category, next.Quantity), models.MessageMultiBulk, payload)
	case finished:
		snapshot := c.Cart().Snapshot()
		say("Perfect! You've completed your multi-category order. All items have been added to your cart!",
			models.MessageCart, snapshot)
	}
}

func (c *Controller) checkout(tr *turn, text string, say func(string, models.MessageType, interface{})) {
	if c.Cart().Snapshot().Empty() {
		say("Your cart is empty. Please add some items before checking out.", models.MessageText, nil)
		return
	}

	asked := false
	c.updateConv(func(s *models.ConversationState) {
		asked = s.AskedForAddons
		if !asked {
			s.AskedForAddons = true
			s.AwaitingAddonAnswer = true
		}
	})
	if asked {
		say(text, models.MessageText, nil)
		c.placeOrder(tr, say)
		return
	}
	say("Before we proceed to checkout, would you like to add any extras like drinks, sides, or condiments? "+
		`Say "yes" to see add-on options or "no" to proceed directly to checkout.`, models.MessageText, nil)
}

func (c *Controller) placeOrder(tr *turn, say func(string, models.MessageType, interface{})) {
	res := c.deps.Applier.Apply(tr.ctx, models.Action{Kind: models.ActionPlaceOrder})
	if res.Receipt == nil {
		say(res.Message, models.MessageText, nil)
		return
	}
	c.updateConv(func(s *models.ConversationState) {
		s.AskedForAddons = false
		s.AwaitingAddonAnswer = false
		s.BulkQuantity = nil
		s.MultiCategory = nil
	})
	say(res.Message, models.MessageReceipt, res.Receipt)
}

func (c *Controller) startBulk(tr *turn, action models.Action, text string, say func(string, models.MessageType, interface{})) {
	quantity := action.BulkQuantity
	if quantity < 1 {
		quantity = action.Quantity
	}
	if quantity < 1 {
		say(text, models.MessageText, nil)
		return
	}

	category, ok := c.resolveCategory(action.Category, action.ItemType)
	if !ok {
		category = "all"
	}
	itemType := action.ItemType
	if itemType == "" {
		itemType = strings.ToLower(category)
	}
	c.updateConv(func(s *models.ConversationState) {
		s.BulkQuantity = &models.BulkQuantityMode{Quantity: quantity, ItemType: itemType, Category: category}
		s.MultiCategory = nil
	})

	items := c.availableIn(category)
	if !ok {
		items = c.availablePrimary()
	}
	say(text, models.MessageText, nil)
	say(fmt.Sprintf("Select your %s - each item will be added with quantity %d.", itemType, quantity),
		models.MessageBulkMenu, models.CategoryPayload{Category: category, Items: items, Quantity: quantity})
}

func (c *Controller) startMulti(action models.Action, text string, say func(string, models.MessageType, interface{})) {
	var steps []models.CategoryQuantity
	for _, step := range action.MultiCategories {
		category, ok := c.resolveCategory(step.Category, "")
		if !ok || step.Quantity < 1 {
			continue
		}
		steps = append(steps, models.CategoryQuantity{Category: category, Quantity: step.Quantity})
	}
	if len(steps) == 0 {
		say(text, models.MessageText, nil)
		return
	}

	c.updateConv(func(s *models.ConversationState) {
		s.MultiCategory = &models.MultiCategoryMode{Categories: steps}
		s.BulkQuantity = nil
	})
	say(text, models.MessageText, nil)
	say(fmt.Sprintf("Let's start with %s (%d items).", steps[0].Category, steps[0].Quantity), models.MessageMultiBulk,
		models.MultiBulkPayload{
			Categories:   append([]models.CategoryQuantity(nil), steps...),
			CurrentIndex: 0,
			Items:        c.availableIn(steps[0].Category),
		})
}

// resolveCategory maps an action category, or failing that free text, onto a catalog category.
func (c *Controller) resolveCategory(category, text string) (string, bool) {
	for _, candidate := range []string{category, text} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || strings.EqualFold(candidate, "all") {
			continue
		}
		for _, known := range c.allCategories() {
			if strings.EqualFold(known, candidate) {
				return known, true
			}
		}
		if found, ok := c.matcher.Category(candidate); ok {
			return found, true
		}
	}
	return "", false
}

func (c *Controller) allCategories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range c.deps.Catalog.Items() {
		if !seen[item.Category] {
			seen[item.Category] = true
			out = append(out, item.Category)
		}
	}
	return out
}

func (c *Controller) availableIn(category string) []models.MenuItem {
	var out []models.MenuItem
	for _, item := range c.deps.Catalog.InCategory(category) {
		if item.Available {
			out = append(out, item)
		}
	}
	return out
}

func (c *Controller) availablePrimary() []models.MenuItem {
	var out []models.MenuItem
	for _, item := range c.deps.Catalog.Items() {
		if item.Available && !item.IsAddon {
			out = append(out, item)
		}
	}
	return out
}

func (c *Controller) menuPayload() models.MenuPayload {
	var groups []models.CategoryItems
	for _, category := range c.deps.Catalog.Categories() {
		var items []models.MenuItem
		for _, item := range c.deps.Catalog.InCategory(category) {
			if !item.IsAddon {
				items = append(items, item)
			}
		}
		groups = append(groups, models.CategoryItems{Category: category, Items: items})
	}
	return models.MenuPayload{Categories: groups}
}

func (c *Controller) delay(action models.Action) time.Duration {
	if c.deps.DelayScale <= 0 {
		return 0
	}
	return time.Duration(float64(action.Delay()) * c.deps.DelayScale * float64(time.Millisecond))
}

// ClearChat resets the transcript and conversational state and asks the AI service to forget
// the session. The cart is kept.
func (c *Controller) ClearChat(ctx context.Context) error {
	tr, err := c.beginTurn("", false)
	if err != nil {
		return err
	}
	c.clear(tr)
	if c.deps.Service != nil {
		if _, err := c.deps.Service.ClearSession(ctx, c.id); err != nil {
			c.logger.Warn("failed to clear ai session", zap.Error(err))
		}
	}
	c.emit(tr, c.newMessage(models.MessageFromAssistant, "Chat cleared! How can I help you today?", models.MessageText, nil, tr.id), 0, false)
	c.finishTurn(tr, SourceLocal)
	return nil
}

func (c *Controller) clear(tr *turn) {
	c.mu.Lock()
	c.conv = models.NewConversationState()
	c.mu.Unlock()
	c.emitter.enqueue(outgoing{reset: true, ctx: tr.ctx})
}

// StartListening begins voice capture. Starting while already listening is a no-op.
func (c *Controller) StartListening() error {
	if c.deps.Recognizer == nil {
		return ErrNoRecognizer
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateListening {
		c.mu.Unlock()
		return nil
	}
	c.state = StateListening
	c.interim = ""
	c.mu.Unlock()

	if err := c.deps.Recognizer.Start(); err != nil {
		c.setState(StateIdle)
		return fmt.Errorf("failed to start speech recognition: %w", err)
	}
	return nil
}

// StopListening ends voice capture.
func (c *Controller) StopListening() error {
	c.mu.Lock()
	listening := c.state == StateListening
	if listening {
		c.state = StateIdle
	}
	c.mu.Unlock()

	if !listening || c.deps.Recognizer == nil {
		return nil
	}
	if err := c.deps.Recognizer.Stop(); err != nil {
		return fmt.Errorf("failed to stop speech recognition: %w", err)
	}
	return nil
}

// OnTranscript receives recognition results. A final transcript runs a voice turn.
func (c *Controller) OnTranscript(text string, final bool) error {
	if !final {
		c.mu.Lock()
		c.interim = text
		c.mu.Unlock()
		return nil
	}
	return c.HandleInput(c.ctx, text, true)
}

// OnSpeechError ends capture and tells the user what went wrong.
func (c *Controller) OnSpeechError(kind SpeechErrorKind) {
	c.mu.Lock()
	if c.state == StateListening {
		c.state = StateIdle
	}
	c.interim = ""
	turnID := c.turn
	c.mu.Unlock()

	c.emit(nil, c.newMessage(models.MessageFromAssistant, SpeechErrorMessage(kind), models.MessageText, nil, turnID), 0, false)
}

// OnSpeechEnd is called when the recognizer stops on its own.
func (c *Controller) OnSpeechEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateListening {
		c.state = StateIdle
	}
}

// OnSpeakStart marks synthesized speech as playing.
func (c *Controller) OnSpeakStart() {
	c.mu.Lock()
	c.speaking = true
	c.mu.Unlock()
}

// OnSpeakEnd marks synthesized speech as finished.
func (c *Controller) OnSpeakEnd() {
	c.mu.Lock()
	c.speaking = false
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the controller flags.
func (c *Controller) State() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:     c.state,
		Typing:    c.typing,
		Speaking:  c.speaking,
		Listening: c.state == StateListening,
		Interim:   c.interim,
		Turn:      c.turn,
	}
}

// Conversation returns a copy of the conversational state.
func (c *Controller) Conversation() models.ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Clone()
}

func (c *Controller) updateConv(fn func(*models.ConversationState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.conv)
}

// Transcript returns the delivered messages in order.
func (c *Controller) Transcript() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ChatMessage, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Subscribe streams delivered messages. The returned func unsubscribes; the channel is
// closed on unsubscribe or when the session closes.
func (c *Controller) Subscribe() (<-chan models.ChatMessage, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan models.ChatMessage, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Flush waits until every message queued so far has been delivered or dropped.
func (c *Controller) Flush(ctx context.Context) error {
	return c.emitter.flush(ctx)
}

// Close cancels the current turn, stops the emitter and closes subscriber channels.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		if c.cancelTurn != nil {
			c.cancelTurn()
		}
		c.mu.Unlock()

		c.cancel()
		c.emitter.stop()

		c.mu.Lock()
		for id, ch := range c.subs {
			delete(c.subs, id)
			close(ch)
		}
		c.mu.Unlock()
	})
}

func (c *Controller) newMessage(from, content string, mt models.MessageType, payload interface{}, turnID uint64) models.ChatMessage {
	return models.ChatMessage{
		ID:          idgen.NewID(),
		Type:        from,
		Content:     content,
		MessageType: mt,
		Payload:     payload,
		Timestamp:   time.Now(),
		Turn:        turnID,
	}
}

// emit queues a message. Messages tied to a turn are dropped once the turn is superseded.
func (c *Controller) emit(tr *turn, msg models.ChatMessage, delay time.Duration, speak bool) {
	o := outgoing{msg: msg, delay: delay, speak: speak}
	if tr != nil && msg.Type == models.MessageFromAssistant {
		o.ctx = tr.ctx
	}
	c.emitter.enqueue(o)
}

func (c *Controller) deliver(o outgoing) {
	c.mu.Lock()
	if o.reset {
		c.transcript = nil
		c.mu.Unlock()
		return
	}
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.transcript = append(c.transcript, o.msg)
	for _, ch := range c.subs {
		select {
		case ch <- o.msg:
		default:
			c.logger.Warn("subscriber too slow, dropping message", zap.String("message", o.msg.ID))
		}
	}
	c.mu.Unlock()

	if o.speak && c.deps.Synthesizer != nil {
		if err := c.deps.Synthesizer.Speak(SanitizeSpeech(o.msg.Content)); err != nil {
			c.logger.Warn("failed to speak reply", zap.Error(err))
		}
	}
}

func (c *Controller) drop(o outgoing) {
	if o.reset {
		return
	}
	c.logger.Debug("dropping message of superseded turn", zap.Uint64("turn", o.msg.Turn))
	if c.deps.Observer != nil {
		c.deps.Observer.ObserveDropped()
	}
}
