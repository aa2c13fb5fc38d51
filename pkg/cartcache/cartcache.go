// Package cartcache is a client-held mirror of a shopper's cart. Mutations
// apply to the mirror immediately so the UI never waits on the server, then
// flush to the backend after a debounce window so bursts of edits coalesce
// into one request. Any flush failure discards the mirror and reloads
// ground truth; the optimistic state is never merged field-by-field with
// the server's.
package cartcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shopkart/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultDebounce is the flush coalescing window applied when the config
// leaves it zero.
const DefaultDebounce = 500 * time.Millisecond

// Op identifies a queued cart mutation.
type Op string

// Mutation operations queued for flush.
const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpSet    Op = "set"
)

// Mutation is one queued server call.
type Mutation struct {
	Op        Op
	ProductID string
	Quantity  int // OpSet only
}

// State is the session lifecycle state. Mutations re-enter StateReady
// without leaving it; only a full reload passes through StateLoading.
type State int

// Session states.
const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

// Backend is the server surface the session reconciles against.
type Backend interface {
	// FetchCart returns the authoritative cart for the user.
	FetchCart(ctx context.Context, userID string) (*model.CartSummary, error)

	// ApplyMutations applies a flushed batch of mutations in order.
	ApplyMutations(ctx context.Context, userID string, mutations []Mutation) error

	// MergeGuestCart folds guest-held items into the user's server cart.
	MergeGuestCart(ctx context.Context, userID string, items []model.GuestCartItem) error
}

// Config configures a Session.
type Config struct {
	Backend  Backend
	Debounce time.Duration
	Logger   zerolog.Logger
}

// line is one mirrored cart line.
type line struct {
	quantity  int
	unitPrice decimal.Decimal
}

// Session is one shopper's cart mirror. It is owned by its caller; two
// independent sessions never share state.
type Session struct {
	mu        sync.Mutex
	backend   Backend
	debounce  time.Duration
	logger    zerolog.Logger
	state     State
	userID    string // "" while browsing as a guest
	lines     map[string]line
	pending   []Mutation
	timer     *time.Timer
	observers []func()

	// lastMergedUser guards the sign-in merge so it runs at most once per
	// sign-in transition.
	lastMergedUser string
}

// NewSession creates an uninitialized session.
func NewSession(cfg Config) *Session {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Session{
		backend:  cfg.Backend,
		debounce: debounce,
		logger:   cfg.Logger.With().Str("component", "cartcache").Logger(),
		state:    StateUninitialized,
		lines:    make(map[string]line),
	}
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers an observer invoked after every mirror change.
func (s *Session) Subscribe(fn func()) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Load performs the initial authoritative fetch for a signed-in user, or
// transitions an empty guest session straight to ready.
func (s *Session) Load(ctx context.Context, userID string) error {
	s.mu.Lock()
	s.userID = userID
	if userID == "" {
		s.state = StateReady
		s.mu.Unlock()
		s.notify()
		return nil
	}
	s.state = StateLoading
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Refresh discards the mirror and replaces it with the server's cart.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	userID := s.userID
	s.state = StateLoading
	s.stopTimerLocked()
	s.pending = nil
	s.mu.Unlock()

	if userID == "" {
		s.mu.Lock()
		s.state = StateReady
		s.mu.Unlock()
		s.notify()
		return nil
	}

	summary, err := s.backend.FetchCart(ctx, userID)
	if err != nil {
		s.mu.Lock()
		s.state = StateUninitialized
		s.mu.Unlock()
		s.logger.Error().Err(err).Str("user_id", userID).Msg("cart refresh failed")
		return fmt.Errorf("cart refresh failed: %w", err)
	}

	s.mu.Lock()
	s.lines = make(map[string]line, len(summary.Items))
	for _, item := range summary.Items {
		s.lines[item.ProductID] = line{quantity: item.Quantity, unitPrice: item.UnitPrice}
	}
	s.state = StateReady
	s.mu.Unlock()

	s.notify()
	return nil
}

// Add optimistically puts one unit of the product into the mirror and
// queues the server add.
func (s *Session) Add(productID string, unitPrice decimal.Decimal) {
	s.mu.Lock()
	existing, ok := s.lines[productID]
	if ok {
		existing.quantity++
		s.lines[productID] = existing
	} else {
		s.lines[productID] = line{quantity: 1, unitPrice: unitPrice}
	}
	s.enqueueLocked(Mutation{Op: OpAdd, ProductID: productID})
	s.mu.Unlock()

	s.notify()
}

// Remove optimistically deletes the product's line and queues the server
// remove.
func (s *Session) Remove(productID string) {
	s.mu.Lock()
	delete(s.lines, productID)
	s.enqueueLocked(Mutation{Op: OpRemove, ProductID: productID})
	s.mu.Unlock()

	s.notify()
}

// SetQuantity optimistically sets the line's quantity (non-positive
// removes) and queues the server update. A product the mirror does not
// hold is ignored: queueing an update for it would desync the flushed
// batch from what the mirror shows.
func (s *Session) SetQuantity(productID string, quantity int) {
	s.mu.Lock()
	existing, ok := s.lines[productID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if quantity <= 0 {
		delete(s.lines, productID)
	} else {
		existing.quantity = quantity
		s.lines[productID] = existing
	}
	s.enqueueLocked(Mutation{Op: OpSet, ProductID: productID, Quantity: quantity})
	s.mu.Unlock()

	s.notify()
}

// SignIn handles the guest-to-user transition: merges the guest-held items
// into the user's server cart exactly once, clears the guest mirror, and
// reloads ground truth. Safe to call repeatedly; repeat calls for the same
// user are no-ops.
func (s *Session) SignIn(ctx context.Context, userID string) error {
	s.mu.Lock()
	if userID == "" || s.lastMergedUser == userID {
		s.mu.Unlock()
		return nil
	}

	guestItems := make([]model.GuestCartItem, 0, len(s.lines))
	for productID, ln := range s.lines {
		guestItems = append(guestItems, model.GuestCartItem{ProductID: productID, Quantity: ln.quantity})
	}

	s.lastMergedUser = userID
	s.userID = userID
	s.lines = make(map[string]line)
	s.stopTimerLocked()
	s.pending = nil
	s.mu.Unlock()

	if len(guestItems) > 0 {
		if err := s.backend.MergeGuestCart(ctx, userID, guestItems); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("guest cart merge failed")
			// Fall through to the reload so the UI converges on whatever
			// the server actually holds.
		} else {
			s.logger.Info().
				Str("user_id", userID).
				Int("guest_items", len(guestItems)).
				Msg("guest cart merged on sign-in")
		}
	}

	return s.Refresh(ctx)
}

// Flush forces an immediate flush of queued mutations, bypassing the
// debounce window.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.stopTimerLocked()
	batch := s.pending
	s.pending = nil
	userID := s.userID
	s.mu.Unlock()

	return s.flushBatch(ctx, userID, batch)
}

// Summary returns the mirror's current items and totals.
func (s *Session) Summary() *model.CartSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := &model.CartSummary{
		UserID: s.userID,
		Items:  make([]model.CartItem, 0, len(s.lines)),
	}
	for productID, ln := range s.lines {
		summary.Items = append(summary.Items, model.CartItem{
			ProductID: productID,
			Quantity:  ln.quantity,
			UnitPrice: ln.unitPrice,
		})
	}
	summary.Totals()
	return summary
}

// Close stops the debounce timer. Queued mutations are dropped; callers
// that care should Flush first.
func (s *Session) Close() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.pending = nil
	s.mu.Unlock()
}

// enqueueLocked queues a mutation and (re)arms the debounce timer. Guests
// have no server cart, so their mutations stay local. Caller holds s.mu.
func (s *Session) enqueueLocked(mutation Mutation) {
	if s.userID == "" {
		return
	}

	s.pending = append(s.pending, mutation)
	s.stopTimerLocked()
	s.timer = time.AfterFunc(s.debounce, s.flushTimer)
}

// stopTimerLocked cancels the pending debounce timer. Caller holds s.mu.
func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// flushTimer is the debounce timer callback.
func (s *Session) flushTimer() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.timer = nil
	userID := s.userID
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.flushBatch(ctx, userID, batch); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("debounced flush failed")
	}
}

// flushBatch sends one batch to the backend. On failure the optimistic
// mirror is discarded and ground truth reloaded.
func (s *Session) flushBatch(ctx context.Context, userID string, batch []Mutation) error {
	if len(batch) == 0 || userID == "" {
		return nil
	}

	if err := s.backend.ApplyMutations(ctx, userID, batch); err != nil {
		s.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Int("batch_size", len(batch)).
			Msg("flush failed, reloading authoritative cart")
		if refreshErr := s.Refresh(ctx); refreshErr != nil {
			return refreshErr
		}
		return fmt.Errorf("cart flush failed: %w", err)
	}

	return nil
}

// notify invokes observers outside the lock.
func (s *Session) notify() {
	s.mu.Lock()
	observers := make([]func(), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}
