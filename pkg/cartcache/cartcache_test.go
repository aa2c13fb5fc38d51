package cartcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shopkart/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records backend calls and serves canned responses.
type fakeBackend struct {
	mu sync.Mutex

	serverCart *model.CartSummary
	fetchErr   error
	applyErr   error
	mergeErr   error

	fetchCalls  int
	applyCalls  [][]Mutation
	mergeCalls  [][]model.GuestCartItem
	mergedUsers []string
}

func (b *fakeBackend) FetchCart(ctx context.Context, userID string) (*model.CartSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchCalls++
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	if b.serverCart != nil {
		return b.serverCart, nil
	}
	return &model.CartSummary{UserID: userID, Items: []model.CartItem{}}, nil
}

func (b *fakeBackend) ApplyMutations(ctx context.Context, userID string, mutations []Mutation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := make([]Mutation, len(mutations))
	copy(batch, mutations)
	b.applyCalls = append(b.applyCalls, batch)
	return b.applyErr
}

func (b *fakeBackend) MergeGuestCart(ctx context.Context, userID string, items []model.GuestCartItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	merged := make([]model.GuestCartItem, len(items))
	copy(merged, items)
	b.mergeCalls = append(b.mergeCalls, merged)
	b.mergedUsers = append(b.mergedUsers, userID)
	return b.mergeErr
}

func (b *fakeBackend) applied() [][]Mutation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]Mutation, len(b.applyCalls))
	copy(out, b.applyCalls)
	return out
}

func (b *fakeBackend) fetches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetchCalls
}

func newTestSession(backend *fakeBackend, debounce time.Duration) *Session {
	return NewSession(Config{Backend: backend, Debounce: debounce, Logger: zerolog.Nop()})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSession_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("starts uninitialized, load makes it ready", func(t *testing.T) {
		backend := &fakeBackend{}
		session := newTestSession(backend, time.Hour)
		defer session.Close()

		assert.Equal(t, StateUninitialized, session.State())

		require.NoError(t, session.Load(ctx, "user-1"))
		assert.Equal(t, StateReady, session.State())
		assert.Equal(t, 1, backend.fetches())
	})

	t.Run("guest load skips the backend", func(t *testing.T) {
		backend := &fakeBackend{}
		session := newTestSession(backend, time.Hour)
		defer session.Close()

		require.NoError(t, session.Load(ctx, ""))
		assert.Equal(t, StateReady, session.State())
		assert.Equal(t, 0, backend.fetches())
	})

	t.Run("failed load drops back to uninitialized", func(t *testing.T) {
		backend := &fakeBackend{fetchErr: errors.New("server down")}
		session := newTestSession(backend, time.Hour)
		defer session.Close()

		err := session.Load(ctx, "user-1")

		assert.ErrorContains(t, err, "cart refresh failed")
		assert.Equal(t, StateUninitialized, session.State())
	})
}

func TestSession_OptimisticMutations(t *testing.T) {
	ctx := context.Background()

	t.Run("mirror reflects mutations before any flush", func(t *testing.T) {
		backend := &fakeBackend{}
		session := newTestSession(backend, time.Hour)
		defer session.Close()
		require.NoError(t, session.Load(ctx, "user-1"))

		session.Add("P001", dec("10.00"))
		session.Add("P001", dec("10.00"))
		session.Add("P002", dec("4.00"))
		session.SetQuantity("P002", 3)

		summary := session.Summary()
		assert.Equal(t, 5, summary.TotalItems)
		assert.Equal(t, "32.00", summary.TotalPrice.StringFixed(2))
		assert.Empty(t, backend.applied(), "nothing flushed inside the debounce window")

		session.Remove("P001")
		assert.Equal(t, 3, session.Summary().TotalItems)
	})

	t.Run("set to zero removes the line", func(t *testing.T) {
		backend := &fakeBackend{}
		session := newTestSession(backend, time.Hour)
		defer session.Close()
		require.NoError(t, session.Load(ctx, "user-1"))

		session.Add("P001", dec("10.00"))
		session.SetQuantity("P001", 0)

		assert.Empty(t, session.Summary().Items)
	})

	t.Run("set on an unknown product queues nothing", func(t *testing.T) {
		backend := &fakeBackend{}
		session := newTestSession(backend, time.Hour)
		defer session.Close()
		require.NoError(t, session.Load(ctx, "user-1"))

		session.SetQuantity("P404", 3)

		assert.Empty(t, session.Summary().Items)
		require.NoError(t, session.Flush(ctx))
		assert.Empty(t, backend.applied())
	})

	t.Run("observers fire on every mirror change", func(t *testing.T) {
		backend := &fakeBackend{}
		session := newTestSession(backend, time.Hour)
		defer session.Close()
		require.NoError(t, session.Load(ctx, "user-1"))

		var notified int
		session.Subscribe(func() { notified++ })

		session.Add("P001", dec("10.00"))
		session.Remove("P001")

		assert.Equal(t, 2, notified)
	})
}

func TestSession_DebouncedFlush(t *testing.T) {
	ctx := context.Background()

	t.Run("a burst of edits coalesces into one batch", func(t *testing.T) {
		backend := &fakeBackend{}
		session := newTestSession(backend, 30*time.Millisecond)
		defer session.Close()
		require.NoError(t, session.Load(ctx, "user-1"))

		session.Add("P001", dec("10.00"))
		session.Add("P002", dec("4.00"))
		session.Remove("P002")

		require.Eventually(t, func() bool {
			return len(backend.applied()) == 1
		}, time.Second, 5*time.Millisecond)

		batch := backend.applied()[0]
		require.Len(t, batch, 3)
		assert.Equal(t, Mutation{Op: OpAdd, ProductID: "P001"}, batch[0])
		assert.Equal(t, Mutation{Op: OpAdd, ProductID: "P002"}, batch[1])
		assert.Equal(t, Mutation{Op: OpRemove, ProductID: "P002"}, batch[2])
	})

	t.Run("explicit flush bypasses the window", func(t *testing.T) {
		backend := &fakeBackend{}
		session := newTestSession(backend, time.Hour)
		defer session.Close()
		require.NoError(t, session.Load(ctx, "user-1"))

		session.Add("P001", dec("10.00"))
		require.NoError(t, session.Flush(ctx))

		require.Len(t, backend.applied(), 1)

		// the queue drained; a second flush sends nothing
		require.NoError(t, session.Flush(ctx))
		assert.Len(t, backend.applied(), 1)
	})

	t.Run("guest mutations never reach the backend", func(t *testing.T) {
		backend := &fakeBackend{}
		session := newTestSession(backend, 10*time.Millisecond)
		defer session.Close()
		require.NoError(t, session.Load(ctx, ""))

		session.Add("P001", dec("10.00"))
		require.NoError(t, session.Flush(ctx))

		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, backend.applied())
		assert.Equal(t, 1, session.Summary().TotalItems)
	})
}

func TestSession_FlushFailureReloadsGroundTruth(t *testing.T) {
	ctx := context.Background()

	backend := &fakeBackend{
		applyErr: errors.New("conflict"),
		serverCart: &model.CartSummary{
			UserID: "user-1",
			Items:  []model.CartItem{{ProductID: "P009", Quantity: 2, UnitPrice: dec("7.50")}},
		},
	}
	session := newTestSession(backend, time.Hour)
	defer session.Close()
	require.NoError(t, session.Load(ctx, "user-1"))

	session.Add("P001", dec("10.00"))
	err := session.Flush(ctx)

	assert.ErrorContains(t, err, "cart flush failed")
	assert.Equal(t, StateReady, session.State())

	// the optimistic line is gone; the mirror is the server's cart verbatim
	summary := session.Summary()
	require.Len(t, summary.Items, 1)
	assert.Equal(t, "P009", summary.Items[0].ProductID)
	assert.Equal(t, 2, summary.TotalItems)
	assert.Equal(t, "15.00", summary.TotalPrice.StringFixed(2))
}

func TestSession_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("guest items merge exactly once", func(t *testing.T) {
		backend := &fakeBackend{}
		session := newTestSession(backend, time.Hour)
		defer session.Close()
		require.NoError(t, session.Load(ctx, ""))

		session.Add("P001", dec("10.00"))
		session.Add("P001", dec("10.00"))

		require.NoError(t, session.SignIn(ctx, "user-1"))
		require.Len(t, backend.mergeCalls, 1)
		assert.Equal(t, []model.GuestCartItem{{ProductID: "P001", Quantity: 2}}, backend.mergeCalls[0])

		// repeat sign-in for the same user is a no-op
		require.NoError(t, session.SignIn(ctx, "user-1"))
		assert.Len(t, backend.mergeCalls, 1)
	})

	t.Run("empty guest cart skips the merge but still reloads", func(t *testing.T) {
		backend := &fakeBackend{}
		session := newTestSession(backend, time.Hour)
		defer session.Close()
		require.NoError(t, session.Load(ctx, ""))

		require.NoError(t, session.SignIn(ctx, "user-1"))

		assert.Empty(t, backend.mergeCalls)
		assert.Equal(t, 1, backend.fetches())
		assert.Equal(t, StateReady, session.State())
	})

	t.Run("merge failure still converges on the server cart", func(t *testing.T) {
		backend := &fakeBackend{
			mergeErr: errors.New("merge rejected"),
			serverCart: &model.CartSummary{
				UserID: "user-1",
				Items:  []model.CartItem{{ProductID: "P002", Quantity: 1, UnitPrice: dec("4.00")}},
			},
		}
		session := newTestSession(backend, time.Hour)
		defer session.Close()
		require.NoError(t, session.Load(ctx, ""))

		session.Add("P001", dec("10.00"))

		require.NoError(t, session.SignIn(ctx, "user-1"))

		summary := session.Summary()
		require.Len(t, summary.Items, 1)
		assert.Equal(t, "P002", summary.Items[0].ProductID)
	})
}
