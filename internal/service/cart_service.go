package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopkart/internal/events"
	"shopkart/internal/model"
	"shopkart/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// cartService implements CartService.
type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	publisher   events.Publisher
	logger      zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	publisher events.Publisher,
	logger zerolog.Logger,
) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		publisher:   publisher,
		logger:      logger.With().Str("service", "cart").Logger(),
	}
}

// GetCart returns the user's pending cart summary.
func (s *cartService) GetCart(ctx context.Context, userID string) (*model.CartSummary, error) {
	cart, items, err := s.cartRepo.FindPending(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load cart")
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart == nil {
		return emptySummary(userID), nil
	}
	return summarize(cart, items), nil
}

// Add puts one unit of the product into the cart.
func (s *cartService) Add(ctx context.Context, userID, productID string) (*model.CartSummary, error) {
	summary, err := s.mutate(ctx, userID, "add", func(ctx context.Context, tx pgx.Tx) (*model.Cart, []model.CartItem, error) {
		cart, items, err := s.getOrCreateTx(ctx, tx, userID)
		if err != nil {
			return nil, nil, err
		}
		items, err = s.addTx(ctx, tx, cart, items, productID, 1)
		if err != nil {
			return nil, nil, err
		}
		return cart, items, nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Remove deletes the product's whole line from the cart.
func (s *cartService) Remove(ctx context.Context, userID, productID string) (*model.CartSummary, error) {
	return s.mutate(ctx, userID, "remove", func(ctx context.Context, tx pgx.Tx) (*model.Cart, []model.CartItem, error) {
		cart, items, err := s.cartRepo.FindPendingTx(ctx, tx, userID)
		if err != nil {
			return nil, nil, err
		}
		if cart == nil {
			return nil, nil, model.ErrCartNotFound
		}
		items, err = s.removeTx(ctx, tx, items, productID)
		if err != nil {
			return nil, nil, err
		}
		return cart, items, nil
	})
}

// SetQuantity sets the line's quantity directly; a non-positive quantity
// behaves as Remove.
func (s *cartService) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*model.CartSummary, error) {
	if quantity <= 0 {
		return s.Remove(ctx, userID, productID)
	}

	return s.mutate(ctx, userID, "set_quantity", func(ctx context.Context, tx pgx.Tx) (*model.Cart, []model.CartItem, error) {
		cart, items, err := s.cartRepo.FindPendingTx(ctx, tx, userID)
		if err != nil {
			return nil, nil, err
		}
		if cart == nil {
			return nil, nil, model.ErrCartNotFound
		}

		idx := findItem(items, productID)
		if idx < 0 {
			return nil, nil, model.ErrItemNotFound
		}

		if err := s.cartRepo.UpdateItemQuantity(ctx, tx, items[idx].ID, quantity); err != nil {
			return nil, nil, err
		}
		items[idx].Quantity = quantity
		return cart, items, nil
	})
}

// Batch applies one add or remove per product ID in a single transaction.
// Failed entries report their error and are skipped; the rest commit.
func (s *cartService) Batch(ctx context.Context, userID string, req *model.BatchRequest) (*model.BatchResponse, error) {
	if req.Operation != model.BatchOpAdd && req.Operation != model.BatchOpRemove {
		return nil, fmt.Errorf("unknown batch operation %q", req.Operation)
	}
	if len(req.ProductIDs) == 0 {
		summary, err := s.GetCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &model.BatchResponse{Results: []model.BatchEntryResult{}, Cart: summary}, nil
	}

	results := make([]model.BatchEntryResult, 0, len(req.ProductIDs))

	summary, err := s.mutate(ctx, userID, "batch_"+req.Operation, func(ctx context.Context, tx pgx.Tx) (*model.Cart, []model.CartItem, error) {
		var cart *model.Cart
		var items []model.CartItem
		var err error

		if req.Operation == model.BatchOpAdd {
			cart, items, err = s.getOrCreateTx(ctx, tx, userID)
		} else {
			cart, items, err = s.cartRepo.FindPendingTx(ctx, tx, userID)
		}
		if err != nil {
			return nil, nil, err
		}

		for _, productID := range req.ProductIDs {
			var entryErr error
			switch {
			case cart == nil:
				entryErr = model.ErrCartNotFound
			case req.Operation == model.BatchOpAdd:
				var updated []model.CartItem
				updated, entryErr = s.addTx(ctx, tx, cart, items, productID, 1)
				if entryErr == nil {
					items = updated
				}
			default:
				var updated []model.CartItem
				updated, entryErr = s.removeTx(ctx, tx, items, productID)
				if entryErr == nil {
					items = updated
				}
			}

			results = append(results, entryResult(productID, entryErr))

			// Infrastructure failures abort the whole batch; only
			// business-rule failures are isolated per entry.
			var domainErr *model.DomainError
			if entryErr != nil && !errors.As(entryErr, &domainErr) {
				return nil, nil, entryErr
			}
		}

		if cart == nil {
			return nil, nil, errNoCartNoop
		}
		return cart, items, nil
	})

	if errors.Is(err, errNoCartNoop) {
		return &model.BatchResponse{Results: results, Cart: emptySummary(userID)}, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.BatchResponse{Results: results, Cart: summary}, nil
}

// Consolidate merges all pending carts for the user into the oldest one.
func (s *cartService) Consolidate(ctx context.Context, userID string) (*model.CartSummary, error) {
	summary, err := s.mutate(ctx, userID, "consolidate", func(ctx context.Context, tx pgx.Tx) (*model.Cart, []model.CartItem, error) {
		carts, itemsByCart, err := s.cartRepo.FindAllPendingTx(ctx, tx, userID)
		if err != nil {
			return nil, nil, err
		}
		if len(carts) == 0 {
			return nil, nil, errNoCartNoop
		}

		canonical := carts[0]
		canonicalItems := itemsByCart[canonical.ID]
		if len(carts) == 1 {
			return &canonical, canonicalItems, nil
		}

		byProduct := make(map[string]int, len(canonicalItems))
		for i, item := range canonicalItems {
			byProduct[item.ProductID] = i
		}

		for _, dup := range carts[1:] {
			for _, item := range itemsByCart[dup.ID] {
				if idx, ok := byProduct[item.ProductID]; ok {
					merged := canonicalItems[idx].Quantity + item.Quantity
					if err := s.cartRepo.UpdateItemQuantity(ctx, tx, canonicalItems[idx].ID, merged); err != nil {
						return nil, nil, err
					}
					if err := s.cartRepo.DeleteItem(ctx, tx, item.ID); err != nil {
						return nil, nil, err
					}
					canonicalItems[idx].Quantity = merged
				} else {
					if err := s.cartRepo.MoveItem(ctx, tx, item.ID, canonical.ID); err != nil {
						return nil, nil, err
					}
					item.CartID = canonical.ID
					canonicalItems = append(canonicalItems, item)
					byProduct[item.ProductID] = len(canonicalItems) - 1
				}
			}
			if err := s.cartRepo.DeleteCart(ctx, tx, dup.ID); err != nil {
				return nil, nil, err
			}
		}

		s.logger.Info().
			Str("user_id", userID).
			Str("canonical_cart_id", canonical.ID.String()).
			Int("merged_carts", len(carts)-1).
			Msg("pending carts consolidated")

		return &canonical, canonicalItems, nil
	})

	if errors.Is(err, errNoCartNoop) {
		return emptySummary(userID), nil
	}
	return summary, err
}

// MergeGuestCart folds a client-held guest cart into the user's server cart.
func (s *cartService) MergeGuestCart(ctx context.Context, userID string, guestItems []model.GuestCartItem) (*model.BatchResponse, error) {
	if len(guestItems) == 0 {
		summary, err := s.GetCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &model.BatchResponse{Results: []model.BatchEntryResult{}, Cart: summary}, nil
	}

	results := make([]model.BatchEntryResult, 0, len(guestItems))

	summary, err := s.mutate(ctx, userID, "guest_merge", func(ctx context.Context, tx pgx.Tx) (*model.Cart, []model.CartItem, error) {
		cart, items, err := s.getOrCreateTx(ctx, tx, userID)
		if err != nil {
			return nil, nil, err
		}

		for _, guest := range guestItems {
			var entryErr error
			if guest.Quantity <= 0 {
				entryErr = model.ErrInvalidQuantity
			} else {
				var updated []model.CartItem
				updated, entryErr = s.addTx(ctx, tx, cart, items, guest.ProductID, guest.Quantity)
				if entryErr == nil {
					items = updated
				}
			}

			results = append(results, entryResult(guest.ProductID, entryErr))

			var domainErr *model.DomainError
			if entryErr != nil && !errors.As(entryErr, &domainErr) {
				return nil, nil, entryErr
			}
		}

		return cart, items, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("guest_items", len(guestItems)).
		Msg("guest cart merged")

	return &model.BatchResponse{Results: results, Cart: summary}, nil
}

// errNoCartNoop is an internal signal that an operation had no pending cart
// to act on and completed as a no-op. Never escapes the service.
var errNoCartNoop = errors.New("no pending cart, nothing to do")

// mutate wraps one cart mutation in a transaction: begin, run, touch,
// commit, then publish the cart-updated event. fn returns the cart and its
// post-mutation items, from which the summary is derived.
func (s *cartService) mutate(
	ctx context.Context,
	userID, operation string,
	fn func(ctx context.Context, tx pgx.Tx) (*model.Cart, []model.CartItem, error),
) (*model.CartSummary, error) {
	tx, err := s.cartRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", operation, err)
	}

	// Ensure transaction is rolled back on error
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	var cart *model.Cart
	var items []model.CartItem
	cart, items, err = fn(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err = s.cartRepo.TouchCart(ctx, tx, cart.ID); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to commit cart mutation")
		return nil, fmt.Errorf("failed to %s: %w", operation, err)
	}

	summary := summarize(cart, items)

	s.publisher.CartUpdated(ctx, events.CartUpdatedEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		CartID:     cart.ID.String(),
		Operation:  operation,
		TotalItems: summary.TotalItems,
		TotalPrice: summary.TotalPrice.StringFixed(2),
		Timestamp:  time.Now().UTC(),
	})

	s.logger.Debug().
		Str("user_id", userID).
		Str("operation", operation).
		Int("total_items", summary.TotalItems).
		Msg("cart mutation committed")

	return summary, nil
}

// getOrCreateTx resolves the user's pending cart, creating a fresh one when
// absent. A lost create race re-reads and uses the winner's cart.
func (s *cartService) getOrCreateTx(ctx context.Context, tx pgx.Tx, userID string) (*model.Cart, []model.CartItem, error) {
	cart, items, err := s.cartRepo.FindPendingTx(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}
	if cart != nil {
		return cart, items, nil
	}

	now := time.Now()
	fresh := &model.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    model.CartStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.cartRepo.CreatePending(ctx, tx, fresh)
	if errors.Is(err, repository.ErrDuplicatePendingCart) {
		cart, items, err = s.cartRepo.FindPendingTx(ctx, tx, userID)
		if err != nil {
			return nil, nil, err
		}
		if cart == nil {
			return nil, nil, fmt.Errorf("pending cart vanished after create conflict for user %s", userID)
		}
		return cart, items, nil
	}
	if err != nil {
		return nil, nil, err
	}

	return fresh, []model.CartItem{}, nil
}

// addTx applies a quantity-aware add to the loaded cart: an existing line
// is incremented, otherwise the product's current price is snapshotted into
// a new line.
func (s *cartService) addTx(ctx context.Context, tx pgx.Tx, cart *model.Cart, items []model.CartItem, productID string, quantity int) ([]model.CartItem, error) {
	if idx := findItem(items, productID); idx >= 0 {
		merged := items[idx].Quantity + quantity
		if err := s.cartRepo.UpdateItemQuantity(ctx, tx, items[idx].ID, merged); err != nil {
			return nil, err
		}
		items[idx].Quantity = merged
		return items, nil
	}

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}

	item := model.CartItem{
		ID:        uuid.New(),
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: product.Price,
	}
	if err := s.cartRepo.InsertItem(ctx, tx, &item); err != nil {
		return nil, err
	}

	return append(items, item), nil
}

// removeTx deletes the product's line from the loaded cart.
func (s *cartService) removeTx(ctx context.Context, tx pgx.Tx, items []model.CartItem, productID string) ([]model.CartItem, error) {
	idx := findItem(items, productID)
	if idx < 0 {
		return nil, model.ErrItemNotFound
	}

	if err := s.cartRepo.DeleteItem(ctx, tx, items[idx].ID); err != nil {
		return nil, err
	}

	return append(items[:idx], items[idx+1:]...), nil
}

// findItem returns the index of the product's line, or -1.
func findItem(items []model.CartItem, productID string) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// entryResult converts a per-entry error into its batch result row.
func entryResult(productID string, err error) model.BatchEntryResult {
	if err == nil {
		return model.BatchEntryResult{ProductID: productID, Status: model.BatchStatusOK}
	}

	result := model.BatchEntryResult{
		ProductID: productID,
		Status:    model.BatchStatusError,
		Message:   err.Error(),
	}
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		result.Code = domainErr.Code
	} else {
		result.Code = model.ErrCodeInternalError
	}
	return result
}

// summarize builds the cart summary from the cart and its items.
func summarize(cart *model.Cart, items []model.CartItem) *model.CartSummary {
	if items == nil {
		items = []model.CartItem{}
	}
	summary := &model.CartSummary{
		CartID: cart.ID,
		UserID: cart.UserID,
		Items:  items,
	}
	summary.Totals()
	return summary
}

// emptySummary is the summary of a user with no pending cart.
func emptySummary(userID string) *model.CartSummary {
	summary := &model.CartSummary{
		UserID: userID,
		Items:  []model.CartItem{},
	}
	summary.Totals()
	return summary
}
