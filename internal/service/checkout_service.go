package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"shopkart/internal/events"
	"shopkart/internal/model"
	"shopkart/internal/payment"
	"shopkart/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CheckoutConfig holds the pricing and retry knobs for checkout.
type CheckoutConfig struct {
	ShippingFee   decimal.Decimal
	BuyNowTaxRate decimal.Decimal
	NumberFloor   int
	NumberRetries int
	Currency      string
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	verifier    payment.Verifier
	gateway     payment.Gateway
	publisher   events.Publisher
	cfg         CheckoutConfig
	logger      zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	verifier payment.Verifier,
	gateway payment.Gateway,
	publisher events.Publisher,
	cfg CheckoutConfig,
	logger zerolog.Logger,
) CheckoutService {
	return &checkoutService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		verifier:    verifier,
		gateway:     gateway,
		publisher:   publisher,
		cfg:         cfg,
		logger:      logger.With().Str("service", "checkout").Logger(),
	}
}

// Checkout confirms the user's pending cart into an immutable order.
func (s *checkoutService) Checkout(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.OrderResponse, error) {
	if err := s.verifyPayment(req.Payment); err != nil {
		return nil, err
	}

	return s.confirm(ctx, userID, "checkout", req.Shipping, req.Payment, false,
		func(ctx context.Context, tx pgx.Tx) ([]model.OrderItem, error) {
			cart, cartItems, err := s.cartRepo.FindPendingTx(ctx, tx, userID)
			if err != nil {
				return nil, err
			}
			if cart == nil || len(cartItems) == 0 {
				return nil, model.ErrEmptyCart
			}

			items := make([]model.OrderItem, len(cartItems))
			for i, item := range cartItems {
				items[i] = model.OrderItem{
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
					UnitPrice: item.UnitPrice,
				}
			}
			return items, nil
		})
}

// BuyNow confirms an ad-hoc item list directly, bypassing the stored cart.
// Unlike the cart path it also applies the flat buy-now tax rate.
func (s *checkoutService) BuyNow(ctx context.Context, userID string, req *model.BuyNowRequest) (*model.OrderResponse, error) {
	if err := s.verifyPayment(req.Payment); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, model.ErrEmptyCart
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, model.ErrInvalidQuantity
		}
	}

	return s.confirm(ctx, userID, "buy_now", req.Shipping, req.Payment, true,
		func(ctx context.Context, tx pgx.Tx) ([]model.OrderItem, error) {
			ids := make([]string, len(req.Items))
			for i, item := range req.Items {
				ids[i] = item.ProductID
			}

			products, err := s.productRepo.GetByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			priceByID := make(map[string]decimal.Decimal, len(products))
			for _, p := range products {
				priceByID[p.ID] = p.Price
			}

			items := make([]model.OrderItem, len(req.Items))
			for i, item := range req.Items {
				price, ok := priceByID[item.ProductID]
				if !ok {
					return nil, model.ErrProductNotFound
				}
				items[i] = model.OrderItem{
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
					UnitPrice: price,
				}
			}
			return items, nil
		})
}

// CreateIntent registers the pending cart's total with the payment gateway.
func (s *checkoutService) CreateIntent(ctx context.Context, userID string) (*payment.Intent, error) {
	cart, items, err := s.cartRepo.FindPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart == nil || len(items) == 0 {
		return nil, model.ErrEmptyCart
	}

	total := s.cfg.ShippingFee
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	intent, err := s.gateway.CreateIntent(ctx, total, s.cfg.Currency)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create payment intent")
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return intent, nil
}

// GetOrder retrieves a confirmed order by number with product display data.
func (s *checkoutService) GetOrder(ctx context.Context, number string) (*model.OrderResponse, error) {
	order, items, err := s.orderRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, nil
	}

	products, err := s.joinProducts(ctx, items)
	if err != nil {
		return nil, err
	}

	return &model.OrderResponse{Order: *order, Items: items, Products: products}, nil
}

// verifyPayment checks the gateway signature for gateway-mediated payments.
// Deferred payments carry no payload and skip verification.
func (s *checkoutService) verifyPayment(info model.PaymentInfo) error {
	if info.Deferred() {
		return nil
	}
	if !s.verifier.Verify(info.OrderRef, info.PaymentRef, info.Signature) {
		return model.ErrInvalidSignature
	}
	return nil
}

// confirm runs the checkout transition: resolve the item snapshots, compute
// totals, assign the next order number, and persist the order in one
// transaction. A number collision rolls the whole attempt back and retries
// with a freshly read number before surfacing the conflict.
func (s *checkoutService) confirm(
	ctx context.Context,
	userID, flow string,
	shipping model.ShippingInfo,
	pay model.PaymentInfo,
	withTax bool,
	resolveItems func(ctx context.Context, tx pgx.Tx) ([]model.OrderItem, error),
) (*model.OrderResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := s.confirmOnce(ctx, userID, flow, shipping, pay, withTax, resolveItems)
		if errors.Is(err, model.ErrOrderConflict) && attempt < s.cfg.NumberRetries {
			s.logger.Warn().
				Str("user_id", userID).
				Int("attempt", attempt+1).
				Msg("order number conflict, retrying checkout")
			continue
		}
		return resp, err
	}
}

// confirmOnce is a single transactional checkout attempt.
func (s *checkoutService) confirmOnce(
	ctx context.Context,
	userID, flow string,
	shipping model.ShippingInfo,
	pay model.PaymentInfo,
	withTax bool,
	resolveItems func(ctx context.Context, tx pgx.Tx) ([]model.OrderItem, error),
) (*model.OrderResponse, error) {
	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check out: %w", err)
	}

	// Ensure transaction is rolled back on error
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	var items []model.OrderItem
	items, err = resolveItems(ctx, tx)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	tax := decimal.Zero
	if withTax {
		tax = subtotal.Mul(s.cfg.BuyNowTaxRate).Round(2)
	}
	total := subtotal.Add(s.cfg.ShippingFee).Add(tax)

	var number string
	number, err = s.nextNumber(ctx, tx)
	if err != nil {
		return nil, err
	}

	paymentStatus := model.PaymentStatusPending
	if !pay.Deferred() {
		paymentStatus = model.PaymentStatusPaid
	}

	order := &model.Order{
		ID:            uuid.New(),
		Number:        number,
		UserID:        userID,
		Status:        model.OrderStatusConfirmed,
		PaymentStatus: paymentStatus,
		PaymentRef:    pay.PaymentRef,
		Shipping:      shipping,
		Subtotal:      subtotal,
		ShippingFee:   s.cfg.ShippingFee,
		Tax:           tax,
		Total:         total,
		CreatedAt:     time.Now(),
	}

	if err = s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = order.ID
	}
	if err = s.orderRepo.CreateOrderItems(ctx, tx, items); err != nil {
		return nil, err
	}

	// Resolve display data before committing: a failed read here rolls the
	// attempt back instead of erroring on an order that already exists.
	var products []model.Product
	products, err = s.joinProducts(ctx, items)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Str("order_number", number).Msg("failed to commit checkout")
		return nil, fmt.Errorf("failed to check out: %w", err)
	}

	s.publisher.OrderConfirmed(ctx, events.OrderConfirmedEvent{
		EventID:     uuid.NewString(),
		OrderNumber: order.Number,
		UserID:      userID,
		Status:      order.Status,
		Total:       order.Total.StringFixed(2),
		Items:       items,
		Timestamp:   time.Now().UTC(),
	})

	s.logger.Info().
		Str("user_id", userID).
		Str("flow", flow).
		Str("order_number", order.Number).
		Str("total", order.Total.StringFixed(2)).
		Msg("order confirmed")

	return &model.OrderResponse{Order: *order, Items: items, Products: products}, nil
}

// nextNumber produces the next order number: latest parsed + 1, clamped to
// the floor, rendered zero-padded to the floor's digit width. An absent or
// unparseable latest number yields the floor. There is no reservation; the
// unique order_number column turns races into ErrOrderConflict at insert.
func (s *checkoutService) nextNumber(ctx context.Context, tx pgx.Tx) (string, error) {
	latest, err := s.orderRepo.LatestNumber(ctx, tx)
	if err != nil {
		return "", err
	}

	next := s.cfg.NumberFloor
	if parsed, parseErr := strconv.Atoi(latest); parseErr == nil && parsed+1 > next {
		next = parsed + 1
	}

	width := len(strconv.Itoa(s.cfg.NumberFloor))
	return fmt.Sprintf("%0*d", width, next), nil
}

// joinProducts loads display data for the order's products.
func (s *checkoutService) joinProducts(ctx context.Context, items []model.OrderItem) ([]model.Product, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to retrieve product details")
		return nil, fmt.Errorf("failed to retrieve product details: %w", err)
	}
	return products, nil
}
