package service

import (
	"context"

	"shopkart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// MockProductRepository is a mock implementation of ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

// MockCartRepository is a mock implementation of CartRepository.
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCartRepository) FindPending(ctx context.Context, userID string) (*model.Cart, []model.CartItem, error) {
	args := m.Called(ctx, userID)
	return cartResult(args)
}

func (m *MockCartRepository) FindPendingTx(ctx context.Context, tx pgx.Tx, userID string) (*model.Cart, []model.CartItem, error) {
	args := m.Called(ctx, tx, userID)
	return cartResult(args)
}

func (m *MockCartRepository) FindAllPendingTx(ctx context.Context, tx pgx.Tx, userID string) ([]model.Cart, map[uuid.UUID][]model.CartItem, error) {
	args := m.Called(ctx, tx, userID)
	var carts []model.Cart
	if args.Get(0) != nil {
		carts = args.Get(0).([]model.Cart)
	}
	var items map[uuid.UUID][]model.CartItem
	if args.Get(1) != nil {
		items = args.Get(1).(map[uuid.UUID][]model.CartItem)
	}
	return carts, items, args.Error(2)
}

func (m *MockCartRepository) CreatePending(ctx context.Context, tx pgx.Tx, cart *model.Cart) error {
	args := m.Called(ctx, tx, cart)
	return args.Error(0)
}

func (m *MockCartRepository) InsertItem(ctx context.Context, tx pgx.Tx, item *model.CartItem) error {
	args := m.Called(ctx, tx, item)
	return args.Error(0)
}

func (m *MockCartRepository) UpdateItemQuantity(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, quantity int) error {
	args := m.Called(ctx, tx, itemID, quantity)
	return args.Error(0)
}

func (m *MockCartRepository) MoveItem(ctx context.Context, tx pgx.Tx, itemID, cartID uuid.UUID) error {
	args := m.Called(ctx, tx, itemID, cartID)
	return args.Error(0)
}

func (m *MockCartRepository) DeleteItem(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) error {
	args := m.Called(ctx, tx, itemID)
	return args.Error(0)
}

func (m *MockCartRepository) DeleteCart(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	args := m.Called(ctx, tx, cartID)
	return args.Error(0)
}

func (m *MockCartRepository) TouchCart(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	args := m.Called(ctx, tx, cartID)
	return args.Error(0)
}

// cartResult unpacks a (cart, items, error) mock return.
func cartResult(args mock.Arguments) (*model.Cart, []model.CartItem, error) {
	var cart *model.Cart
	if args.Get(0) != nil {
		cart = args.Get(0).(*model.Cart)
	}
	var items []model.CartItem
	if args.Get(1) != nil {
		items = args.Get(1).([]model.CartItem)
	}
	return cart, items, args.Error(2)
}

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) LatestNumber(ctx context.Context, tx pgx.Tx) (string, error) {
	args := m.Called(ctx, tx)
	return args.String(0), args.Error(1)
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	args := m.Called(ctx, tx, items)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByNumber(ctx context.Context, number string) (*model.Order, []model.OrderItem, error) {
	args := m.Called(ctx, number)
	var order *model.Order
	if args.Get(0) != nil {
		order = args.Get(0).(*model.Order)
	}
	var items []model.OrderItem
	if args.Get(1) != nil {
		items = args.Get(1).([]model.OrderItem)
	}
	return order, items, args.Error(2)
}

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
	committed  bool
	rolledBack bool
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.committed = true
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.rolledBack = true
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }
