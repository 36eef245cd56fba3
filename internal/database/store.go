// Package database persists order records in a single relational table,
// on SQLite by default or Postgres when configured.
package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"flowzero/internal/models"
)

// ErrNotFound is returned when an order ID has no row.
var ErrNotFound = errors.New("order not found")

const timeLayout = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id             TEXT PRIMARY KEY,
	aoi_name             TEXT NOT NULL,
	order_type           TEXT NOT NULL,
	batch_id             TEXT NOT NULL DEFAULT '',
	start_date           TEXT NOT NULL,
	end_date             TEXT NOT NULL,
	status               TEXT NOT NULL,
	num_bands            INTEGER NOT NULL DEFAULT 0,
	product_bundle       TEXT NOT NULL DEFAULT '',
	product_bundle_order TEXT NOT NULL DEFAULT '',
	clipped              INTEGER NOT NULL DEFAULT 0,
	aoi_area_sq_km       REAL NOT NULL DEFAULT 0,
	scenes_found         INTEGER NOT NULL DEFAULT 0,
	scenes_selected      INTEGER NOT NULL DEFAULT 0,
	quota_hectares       REAL NOT NULL DEFAULT 0,
	batch_order          INTEGER NOT NULL DEFAULT 0,
	mosaic_name          TEXT NOT NULL DEFAULT '',
	metadata             TEXT,
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_aoi_name ON orders(aoi_name);
CREATE INDEX IF NOT EXISTS idx_orders_batch_id ON orders(batch_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
`

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and applies the schema. driver is
// "sqlite" or "postgres".
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(s.rebind(stmt)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $N for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const orderColumns = `order_id, aoi_name, order_type, batch_id, start_date, end_date, status,
	num_bands, product_bundle, product_bundle_order, clipped, aoi_area_sq_km,
	scenes_found, scenes_selected, quota_hectares, batch_order, mosaic_name,
	metadata, created_at, updated_at`

// Save inserts the order, or replaces every mutable column when the
// order ID already exists.
func (s *Store) Save(o *models.Order) error {
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	var metadata sql.NullString
	if o.Metadata != nil {
		metadata = sql.NullString{String: string(o.Metadata), Valid: true}
	}

	query := s.rebind(`INSERT INTO orders (` + orderColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(order_id) DO UPDATE SET
		aoi_name = excluded.aoi_name,
		order_type = excluded.order_type,
		batch_id = excluded.batch_id,
		start_date = excluded.start_date,
		end_date = excluded.end_date,
		status = excluded.status,
		num_bands = excluded.num_bands,
		product_bundle = excluded.product_bundle,
		product_bundle_order = excluded.product_bundle_order,
		clipped = excluded.clipped,
		aoi_area_sq_km = excluded.aoi_area_sq_km,
		scenes_found = excluded.scenes_found,
		scenes_selected = excluded.scenes_selected,
		quota_hectares = excluded.quota_hectares,
		batch_order = excluded.batch_order,
		mosaic_name = excluded.mosaic_name,
		metadata = excluded.metadata,
		updated_at = excluded.updated_at`)

	_, err := s.db.Exec(query,
		o.OrderID, o.AOIName, o.OrderType, o.BatchID, o.StartDate, o.EndDate, o.Status,
		o.NumBands, o.ProductBundle, o.ProductBundleOrder, boolToInt(o.Clipped), o.AOIAreaSqKm,
		o.ScenesFound, o.ScenesSelected, o.QuotaHectares, boolToInt(o.BatchOrder), o.MosaicName,
		metadata, o.CreatedAt.Format(timeLayout), o.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", o.OrderID, err)
	}
	return nil
}

// Get returns one order by provider order ID.
func (s *Store) Get(orderID string) (*models.Order, error) {
	row := s.db.QueryRow(s.rebind(`SELECT `+orderColumns+` FROM orders WHERE order_id = ?`), orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	return o, nil
}

// FindExisting looks up a prior order for the same site, window and
// order type, regardless of its status. Returns (nil, nil) when there
// is none.
func (s *Store) FindExisting(aoiName, startDate, endDate, orderType string) (*models.Order, error) {
	row := s.db.QueryRow(s.rebind(`SELECT `+orderColumns+` FROM orders
		WHERE aoi_name = ? AND start_date = ? AND end_date = ? AND order_type = ?
		ORDER BY created_at DESC LIMIT 1`),
		aoiName, startDate, endDate, orderType)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up order for %s: %w", aoiName, err)
	}
	return o, nil
}

// HasCompleted reports whether a successful order already covers the
// same site, window and order type.
func (s *Store) HasCompleted(aoiName, startDate, endDate, orderType string) (bool, error) {
	var n int
	err := s.db.QueryRow(s.rebind(`SELECT COUNT(*) FROM orders
		WHERE aoi_name = ? AND start_date = ? AND end_date = ? AND order_type = ? AND status = ?`),
		aoiName, startDate, endDate, orderType, models.StatusSuccess).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check completed orders for %s: %w", aoiName, err)
	}
	return n > 0, nil
}

// UpdateStatus records the provider-reported status. A nil metadata
// keeps whatever metadata the row already holds. Returns ErrNotFound
// for unknown order IDs.
func (s *Store) UpdateStatus(orderID, status string, metadata json.RawMessage) error {
	var meta sql.NullString
	if metadata != nil {
		meta = sql.NullString{String: string(metadata), Valid: true}
	}
	res, err := s.db.Exec(s.rebind(`UPDATE orders
		SET status = ?, metadata = COALESCE(?, metadata), updated_at = ?
		WHERE order_id = ?`),
		status, meta, time.Now().UTC().Format(timeLayout), orderID)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// OrdersInBatch lists a batch's orders in submission order.
func (s *Store) OrdersInBatch(batchID string) ([]models.Order, error) {
	return s.queryOrders(`SELECT `+orderColumns+` FROM orders WHERE batch_id = ? ORDER BY created_at ASC`, batchID)
}

// OrdersByStatus lists orders in a given status, newest first.
func (s *Store) OrdersByStatus(status string) ([]models.Order, error) {
	return s.queryOrders(`SELECT `+orderColumns+` FROM orders WHERE status = ? ORDER BY created_at DESC`, status)
}

// OrdersByAOI lists a site's orders, newest first.
func (s *Store) OrdersByAOI(aoiName string) ([]models.Order, error) {
	return s.queryOrders(`SELECT `+orderColumns+` FROM orders WHERE aoi_name = ? ORDER BY created_at DESC`, aoiName)
}

// PendingOrders lists every order still awaiting a terminal status,
// oldest first so long-running orders get checked first.
func (s *Store) PendingOrders() ([]models.Order, error) {
	return s.queryOrders(`SELECT `+orderColumns+` FROM orders WHERE status IN (?, ?) ORDER BY created_at ASC`,
		models.StatusQueued, models.StatusRunning)
}

// ListOrders returns every order, newest first.
func (s *Store) ListOrders() ([]models.Order, error) {
	return s.queryOrders(`SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`)
}

func (s *Store) queryOrders(query string, args ...interface{}) ([]models.Order, error) {
	rows, err := s.db.Query(s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

// BatchSummary is one row of the batch listing.
type BatchSummary struct {
	BatchID    string
	OrderCount int
	FirstOrder time.Time
}

// ListBatches summarizes every batch, newest first.
func (s *Store) ListBatches() ([]BatchSummary, error) {
	rows, err := s.db.Query(`SELECT batch_id, COUNT(*), MIN(created_at) FROM orders
		WHERE batch_id != '' GROUP BY batch_id ORDER BY MIN(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var batches []BatchSummary
	for rows.Next() {
		var b BatchSummary
		var created string
		if err := rows.Scan(&b.BatchID, &b.OrderCount, &created); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		b.FirstOrder, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("failed to parse batch timestamp: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Stats aggregates the order table.
type Stats struct {
	TotalOrders         int
	ByStatus            map[string]int
	ByType              map[string]int
	DistinctAOIs        int
	DistinctBatches     int
	TotalScenesSelected int
	TotalQuotaHectares  float64
}

// Stats computes order counts and quota totals across the whole table.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{
		ByStatus: make(map[string]int),
		ByType:   make(map[string]int),
	}

	err := s.db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT aoi_name),
		COUNT(DISTINCT CASE WHEN batch_id != '' THEN batch_id END),
		COALESCE(SUM(scenes_selected), 0), COALESCE(SUM(quota_hectares), 0) FROM orders`).
		Scan(&stats.TotalOrders, &stats.DistinctAOIs, &stats.DistinctBatches, &stats.TotalScenesSelected, &stats.TotalQuotaHectares)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.ByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	typeRows, err := s.db.Query(`SELECT order_type, COUNT(*) FROM orders GROUP BY order_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by type: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var orderType string
		var n int
		if err := typeRows.Scan(&orderType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		stats.ByType[orderType] = n
	}
	return stats, typeRows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row scanner) (*models.Order, error) {
	var o models.Order
	var clipped, batchOrder int
	var metadata sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&o.OrderID, &o.AOIName, &o.OrderType, &o.BatchID, &o.StartDate, &o.EndDate, &o.Status,
		&o.NumBands, &o.ProductBundle, &o.ProductBundleOrder, &clipped, &o.AOIAreaSqKm,
		&o.ScenesFound, &o.ScenesSelected, &o.QuotaHectares, &batchOrder, &o.MosaicName,
		&metadata, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Clipped = clipped != 0
	o.BatchOrder = batchOrder != 0
	if metadata.Valid {
		o.Metadata = json.RawMessage(metadata.String)
	}
	if o.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if o.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	return &o, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
