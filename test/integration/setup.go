package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container and connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	// Get connection string
	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	// Create connection pool
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	// Create schema
	createSchema(t, pool)

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// createSchema creates the database schema for testing.
func createSchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	schema := `
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price DECIMAL(10,2) NOT NULL CHECK (price >= 0),
			category TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS carts (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_one_pending_per_user
			ON carts(user_id) WHERE status = 'PENDING';

		CREATE TABLE IF NOT EXISTS cart_items (
			id UUID PRIMARY KEY,
			cart_id UUID NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity INT NOT NULL CHECK (quantity > 0),
			unit_price DECIMAL(10,2) NOT NULL,
			UNIQUE (cart_id, product_id)
		);

		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			order_number TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			payment_ref TEXT NOT NULL DEFAULT '',
			ship_name TEXT NOT NULL DEFAULT '',
			ship_address TEXT NOT NULL DEFAULT '',
			ship_city TEXT NOT NULL DEFAULT '',
			ship_postal TEXT NOT NULL DEFAULT '',
			subtotal DECIMAL(10,2) NOT NULL,
			shipping_fee DECIMAL(10,2) NOT NULL,
			tax DECIMAL(10,2) NOT NULL,
			total DECIMAL(10,2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity INT NOT NULL CHECK (quantity > 0),
			unit_price DECIMAL(10,2) NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_cart_items_cart_id ON cart_items(cart_id);
		CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
	`

	_, err := pool.Exec(ctx, schema)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
}

// SeedProducts inserts test product data into the database.
func SeedProducts(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	products := []struct {
		id       string
		name     string
		price    string
		category string
	}{
		{"P001", "Test Product 1", "10.00", "Category A"},
		{"P002", "Test Product 2", "20.00", "Category B"},
		{"P003", "Test Product 3", "30.00", "Category A"},
		{"P004", "Test Product 4", "40.00", "Category C"},
		{"P005", "Test Product 5", "50.00", "Category B"},
	}

	for _, p := range products {
		_, err := pool.Exec(ctx,
			"INSERT INTO products (id, name, price, category) VALUES ($1, $2, $3, $4)",
			p.id, p.name, p.price, p.category,
		)
		if err != nil {
			t.Fatalf("failed to seed product %s: %v", p.id, err)
		}
	}
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"order_items", "orders", "cart_items", "carts", "products"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
