package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"shiire/internal/core"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const (
	sessionColumns  = `id, title, session_date, status, transportation_cost, transfer_fee, agency_fee, notes, created_at, updated_at`
	purchaseColumns = `id, session_id, store_id, item_count, product_amount, shipping_cost, commission_fee, created_at`
	productColumns  = `id, store_purchase_id, name, category, status, purchase_price, listing_price, sold_price,
		platform_fee, shipping_cost, photos, sold_at, created_at, updated_at`
)

type SQLiteRepository struct {
	db *sqlx.DB
}

// DSN builds the connection string used for both the pool and migrations.
// Foreign keys are enabled per connection so session deletes cascade.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Sessions

func (r *SQLiteRepository) ListSessions(ctx context.Context, status core.SessionStatus) ([]core.PurchaseSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM purchase_sessions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY session_date DESC, created_at DESC`

	sessions := []core.PurchaseSession{}
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (core.PurchaseSession, error) {
	var s core.PurchaseSession
	err := r.db.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM purchase_sessions WHERE id = ?`, id)
	if err != nil {
		return s, notFound("get session", err)
	}
	return s, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s core.PurchaseSession) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO purchase_sessions (`+sessionColumns+`)
		VALUES (:id, :title, :session_date, :status, :transportation_cost, :transfer_fee,
			:agency_fee, :notes, :created_at, :updated_at)`, s)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	slog.InfoContext(ctx, "Session saved to SQLite", "session_id", s.ID, "title", s.Title)
	return nil
}

func (r *SQLiteRepository) UpdateSession(ctx context.Context, s core.PurchaseSession) error {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE purchase_sessions SET
			title = :title,
			session_date = :session_date,
			status = :status,
			transportation_cost = :transportation_cost,
			transfer_fee = :transfer_fee,
			agency_fee = :agency_fee,
			notes = :notes,
			updated_at = :updated_at
		WHERE id = :id`, s)
	return affected("update session", res, err)
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM purchase_sessions WHERE id = ?`, id)
	if err := affected("delete session", res, err); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Session deleted", "session_id", id)
	return nil
}

// Store purchases

func (r *SQLiteRepository) ListPurchases(ctx context.Context, sessionIDs ...string) ([]core.StorePurchase, error) {
	purchases := []core.StorePurchase{}
	if len(sessionIDs) == 0 {
		return purchases, nil
	}
	query, args, err := sqlx.In(`SELECT `+purchaseColumns+` FROM store_purchases
		WHERE session_id IN (?) ORDER BY created_at, id`, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("build purchases query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &purchases, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return purchases, nil
}

func (r *SQLiteRepository) ListPurchasesByID(ctx context.Context, ids []string) ([]core.StorePurchase, error) {
	purchases := []core.StorePurchase{}
	if len(ids) == 0 {
		return purchases, nil
	}
	query, args, err := sqlx.In(`SELECT `+purchaseColumns+` FROM store_purchases WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build purchases query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &purchases, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list purchases by id: %w", err)
	}
	return purchases, nil
}

func (r *SQLiteRepository) GetPurchase(ctx context.Context, id string) (core.StorePurchase, error) {
	var p core.StorePurchase
	err := r.db.GetContext(ctx, &p, `SELECT `+purchaseColumns+` FROM store_purchases WHERE id = ?`, id)
	if err != nil {
		return p, notFound("get purchase", err)
	}
	return p, nil
}

func (r *SQLiteRepository) CreatePurchase(ctx context.Context, p core.StorePurchase) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO store_purchases (`+purchaseColumns+`)
		VALUES (:id, :session_id, :store_id, :item_count, :product_amount, :shipping_cost,
			:commission_fee, :created_at)`, p)
	if err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdatePurchase(ctx context.Context, p core.StorePurchase) error {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE store_purchases SET
			store_id = :store_id,
			item_count = :item_count,
			product_amount = :product_amount,
			shipping_cost = :shipping_cost,
			commission_fee = :commission_fee
		WHERE id = :id`, p)
	return affected("update purchase", res, err)
}

func (r *SQLiteRepository) DeletePurchase(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM store_purchases WHERE id = ?`, id)
	return affected("delete purchase", res, err)
}

// Products

func (r *SQLiteRepository) ListProducts(ctx context.Context) ([]core.Product, error) {
	products := []core.Product{}
	if err := r.db.SelectContext(ctx, &products, `SELECT `+productColumns+` FROM products ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (r *SQLiteRepository) ListProductsByPurchase(ctx context.Context, purchaseIDs []string) ([]core.Product, error) {
	products := []core.Product{}
	if len(purchaseIDs) == 0 {
		return products, nil
	}
	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM products
		WHERE store_purchase_id IN (?) ORDER BY created_at, id`, purchaseIDs)
	if err != nil {
		return nil, fmt.Errorf("build products query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &products, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list products by purchase: %w", err)
	}
	return products, nil
}

func (r *SQLiteRepository) GetProduct(ctx context.Context, id string) (core.Product, error) {
	var p core.Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if err != nil {
		return p, notFound("get product", err)
	}
	return p, nil
}

func (r *SQLiteRepository) CreateProduct(ctx context.Context, p core.Product) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :store_purchase_id, :name, :category, :status, :purchase_price, :listing_price,
			:sold_price, :platform_fee, :shipping_cost, :photos, :sold_at, :created_at, :updated_at)`, p)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateProduct(ctx context.Context, p core.Product) error {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE products SET
			store_purchase_id = :store_purchase_id,
			name = :name,
			category = :category,
			status = :status,
			purchase_price = :purchase_price,
			listing_price = :listing_price,
			sold_price = :sold_price,
			platform_fee = :platform_fee,
			shipping_cost = :shipping_cost,
			photos = :photos,
			sold_at = :sold_at,
			updated_at = :updated_at
		WHERE id = :id`, p)
	return affected("update product", res, err)
}

func (r *SQLiteRepository) DeleteProduct(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	return affected("delete product", res, err)
}

// Stores

func (r *SQLiteRepository) ListStores(ctx context.Context) ([]core.Store, error) {
	stores := []core.Store{}
	if err := r.db.SelectContext(ctx, &stores, `SELECT id, name, created_at FROM stores ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return stores, nil
}

func (r *SQLiteRepository) GetStore(ctx context.Context, id string) (core.Store, error) {
	var s core.Store
	err := r.db.GetContext(ctx, &s, `SELECT id, name, created_at FROM stores WHERE id = ?`, id)
	if err != nil {
		return s, notFound("get store", err)
	}
	return s, nil
}

// FindStoreByName matches names case-insensitively after trimming.
func (r *SQLiteRepository) FindStoreByName(ctx context.Context, name string) (core.Store, error) {
	var s core.Store
	err := r.db.GetContext(ctx, &s, `SELECT id, name, created_at FROM stores WHERE lower(name) = ? LIMIT 1`,
		strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return s, notFound("find store", err)
	}
	return s, nil
}

func (r *SQLiteRepository) CreateStore(ctx context.Context, s core.Store) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO stores (id, name, created_at) VALUES (:id, :name, :created_at)`, s)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	return nil
}

func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func affected(op string, res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}
