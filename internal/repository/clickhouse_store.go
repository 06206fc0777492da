package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
	pkgch "DemandCast/pkg/clickhouse"
	applogger "DemandCast/pkg/logger"

	"github.com/google/uuid"
)

// CHStore implements Storage on ClickHouse. Sales and products are expected
// to be replicated into the same database by the inventory pipeline.
type CHStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
	// database qualifies every table name
	database string
}

var _ domrepo.Storage = (*CHStore)(nil)

func NewCHStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHStore {
	return &CHStore{ch: ch, db: ch.DB(), l: l, database: database}
}

func (s *CHStore) table(name string) string {
	return s.database + "." + name
}

// schema returns the DDL for every table the store touches.
func (s *CHStore) schema() []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			product_id Int64,
			sale_date DateTime,
			quantity Float64
		) ENGINE = MergeTree ORDER BY (product_id, sale_date)`, s.table("sales")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id Int64,
			name String,
			current_stock Float64,
			reorder_point Float64,
			overstock_limit Float64,
			expiry_date Nullable(DateTime),
			updated_at DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree(updated_at) ORDER BY id`, s.table("products")),
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS expiry_date Nullable(DateTime) AFTER overstock_limit`,
			s.table("products")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id String,
			product_id Int64,
			model LowCardinality(String),
			horizon UInt16,
			mae Float64,
			accuracy Float64,
			band_policy LowCardinality(String),
			fallback UInt8,
			fallback_cause String,
			explanations String,
			feature_importance String,
			weights String,
			risk String,
			created_at DateTime64(3)
		) ENGINE = MergeTree ORDER BY (product_id, created_at)`, s.table("forecast_runs")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id String,
			product_id Int64,
			period Date,
			predicted Float64,
			lower95 Float64,
			upper95 Float64
		) ENGINE = MergeTree ORDER BY (product_id, run_id, period)`, s.table("forecast_points")),
	}
}

func (s *CHStore) Init(ctx context.Context) error {
	if err := s.ch.InitSchema(ctx, s.schema()); err != nil {
		return fmt.Errorf("clickhouse: %w", err)
	}
	return nil
}

func (s *CHStore) FetchObservations(ctx context.Context, productID int64) ([]models.Observation, error) {
	start := time.Now()
	q := fmt.Sprintf(`
		SELECT sale_date, quantity
		FROM %s
		WHERE product_id = ?
		ORDER BY sale_date ASC
	`, s.table("sales"))
	rows, err := s.db.QueryContext(ctx, q, productID)
	if err != nil {
		s.l.Error("clickhouse fetch_observations query error",
			applogger.Int64("product_id", productID),
			applogger.Error(err))
		return nil, fmt.Errorf("clickhouse: query sales: %w", err)
	}
	defer rows.Close()

	out := make([]models.Observation, 0, 512)
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.Date, &o.Quantity); err != nil {
			return nil, fmt.Errorf("clickhouse: scan sale: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse: sales rows: %w", err)
	}
	s.l.Debug("clickhouse fetch_observations ok",
		applogger.Int64("product_id", productID),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func (s *CHStore) GetProduct(ctx context.Context, productID int64) (models.Product, error) {
	q := fmt.Sprintf(`
		SELECT id, name, current_stock, reorder_point, overstock_limit, expiry_date
		FROM %s FINAL
		WHERE id = ?
	`, s.table("products"))
	var p models.Product
	err := s.db.QueryRowContext(ctx, q, productID).Scan(&p.ID, &p.Name, &p.CurrentStock, &p.ReorderPoint, &p.OverstockLimit, &p.ExpiryDate)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, fmt.Errorf("product %d: %w", productID, domrepo.ErrNotFound)
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("clickhouse: get product: %w", err)
	}
	return p, nil
}

func (s *CHStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	q := fmt.Sprintf(`
		SELECT id, name, current_stock, reorder_point, overstock_limit, expiry_date
		FROM %s FINAL
		ORDER BY id
	`, s.table("products"))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: list products: %w", err)
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CurrentStock, &p.ReorderPoint, &p.OverstockLimit, &p.ExpiryDate); err != nil {
			return nil, fmt.Errorf("clickhouse: scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveRun inserts the run row and all points. ClickHouse has no
// cross-table transactions, so points are written first and the run row
// last; readers only see points of runs whose row exists.
func (s *CHStore) SaveRun(ctx context.Context, run *models.ForecastRun) (string, error) {
	docs, err := encodeRunDocs(run)
	if err != nil {
		return "", err
	}
	runID := uuid.NewString()

	if len(run.Points) > 0 {
		values := make([]string, 0, len(run.Points))
		args := make([]interface{}, 0, len(run.Points)*6)
		for _, p := range run.Points {
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args, runID, run.ProductID, p.Date, p.Point, p.Lower, p.Upper)
		}
		q := fmt.Sprintf(`INSERT INTO %s (run_id, product_id, period, predicted, lower95, upper95) VALUES %s`,
			s.table("forecast_points"), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return "", fmt.Errorf("clickhouse: insert points: %w", err)
		}
	}

	var fallback uint8
	if run.Fallback {
		fallback = 1
	}
	q := fmt.Sprintf(`INSERT INTO %s (run_id, product_id, model, horizon, mae, accuracy, band_policy, fallback,
		fallback_cause, explanations, feature_importance, weights, risk, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table("forecast_runs"))
	_, err = s.db.ExecContext(ctx, q, runID, run.ProductID, run.Model, uint16(run.Horizon), run.MAE, run.Accuracy,
		run.BandPolicy, fallback, run.FallbackCause, string(docs.explanations), string(docs.importance),
		string(docs.weights), string(docs.risk), run.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("clickhouse: insert run: %w", err)
	}
	return runID, nil
}

func (s *CHStore) LatestRun(ctx context.Context, productID int64) (*models.ForecastRun, error) {
	q := fmt.Sprintf(`
		SELECT run_id, product_id, model, horizon, mae, accuracy, band_policy, fallback,
		       fallback_cause, explanations, feature_importance, weights, risk, created_at
		FROM %s
		WHERE product_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, s.table("forecast_runs"))

	var (
		run                      models.ForecastRun
		horizon                  uint16
		fallback                 uint8
		expl, imp, weights, risk string
	)
	err := s.db.QueryRowContext(ctx, q, productID).Scan(&run.RunID, &run.ProductID, &run.Model, &horizon, &run.MAE,
		&run.Accuracy, &run.BandPolicy, &fallback, &run.FallbackCause, &expl, &imp, &weights, &risk, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("forecast for product %d: %w", productID, domrepo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("clickhouse: latest run: %w", err)
	}
	run.Horizon = int(horizon)
	run.Fallback = fallback == 1
	docs := runDocs{explanations: []byte(expl), importance: []byte(imp), weights: []byte(weights), risk: []byte(risk)}
	if err := docs.decodeInto(&run); err != nil {
		return nil, err
	}

	pq := fmt.Sprintf(`
		SELECT period, predicted, lower95, upper95
		FROM %s
		WHERE product_id = ? AND run_id = ?
		ORDER BY period ASC
	`, s.table("forecast_points"))
	rows, err := s.db.QueryContext(ctx, pq, productID, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: query points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.ForecastPoint
		if err := rows.Scan(&p.Date, &p.Point, &p.Lower, &p.Upper); err != nil {
			return nil, fmt.Errorf("clickhouse: scan point: %w", err)
		}
		p.Date = p.Date.UTC()
		run.Points = append(run.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse: point rows: %w", err)
	}
	return &run, nil
}

func (s *CHStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHStore) Close() error {
	return s.ch.Close()
}
