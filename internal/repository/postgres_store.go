package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
	applogger "DemandCast/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresSchema creates the forecast tables next to the inventory tables.
// "Sale" and "Product" belong to the inventory service and are only read.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS "ForecastRun" (
		id SERIAL PRIMARY KEY,
		"productId" INTEGER NOT NULL,
		method TEXT NOT NULL,
		horizon INTEGER NOT NULL,
		mae DOUBLE PRECISION NOT NULL,
		accuracy DOUBLE PRECISION NOT NULL,
		"createdAt" TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE "ForecastRun" ADD COLUMN IF NOT EXISTS "bandPolicy" TEXT NOT NULL DEFAULT 'fixed'`,
	`ALTER TABLE "ForecastRun" ADD COLUMN IF NOT EXISTS fallback BOOLEAN NOT NULL DEFAULT false`,
	`ALTER TABLE "ForecastRun" ADD COLUMN IF NOT EXISTS "fallbackCause" TEXT`,
	`ALTER TABLE "ForecastRun" ADD COLUMN IF NOT EXISTS explanations JSONB`,
	`ALTER TABLE "ForecastRun" ADD COLUMN IF NOT EXISTS "featureImportance" JSONB`,
	`ALTER TABLE "ForecastRun" ADD COLUMN IF NOT EXISTS weights JSONB`,
	`ALTER TABLE "ForecastRun" ADD COLUMN IF NOT EXISTS risk JSONB`,
	`CREATE INDEX IF NOT EXISTS "ForecastRun_productId_createdAt_idx" ON "ForecastRun" ("productId", "createdAt" DESC)`,
	`CREATE TABLE IF NOT EXISTS "ForecastPoint" (
		id SERIAL PRIMARY KEY,
		"runId" INTEGER NOT NULL REFERENCES "ForecastRun"(id) ON DELETE CASCADE,
		period DATE NOT NULL,
		predicted DOUBLE PRECISION NOT NULL,
		lower95 DOUBLE PRECISION NOT NULL,
		upper95 DOUBLE PRECISION NOT NULL,
		"createdAt" TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// PostgresStore reads sales from the inventory database and persists runs
// into the same database.
type PostgresStore struct {
	pool    *pgxpool.Pool
	l       *applogger.Logger
	migrate bool
}

var _ domrepo.Storage = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool, l *applogger.Logger, migrate bool) *PostgresStore {
	return &PostgresStore{pool: pool, l: l, migrate: migrate}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	if !s.migrate {
		return nil
	}
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init schema: %w", err)
		}
	}
	s.l.Info("postgres schema ready", applogger.Int("statements", len(postgresSchema)))
	return nil
}

func (s *PostgresStore) FetchObservations(ctx context.Context, productID int64) ([]models.Observation, error) {
	const q = `
		SELECT "saleDate", "quantitySold"::float8
		FROM "Sale"
		WHERE "productId" = $1
		ORDER BY "saleDate" ASC
	`
	rows, err := s.pool.Query(ctx, q, productID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query sales: %w", err)
	}
	defer rows.Close()

	out := make([]models.Observation, 0, 512)
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.Date, &o.Quantity); err != nil {
			return nil, fmt.Errorf("postgres: scan sale: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: sales rows: %w", err)
	}
	return out, nil
}

const productColumns = `id, name, COALESCE("currentStock", 0)::float8, COALESCE("reorderPoint", 0)::float8, COALESCE("overStockLimit", 0)::float8, "expiryDate"`

func (s *PostgresStore) GetProduct(ctx context.Context, productID int64) (models.Product, error) {
	var p models.Product
	err := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM "Product" WHERE id = $1`, productID).
		Scan(&p.ID, &p.Name, &p.CurrentStock, &p.ReorderPoint, &p.OverstockLimit, &p.ExpiryDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Product{}, fmt.Errorf("product %d: %w", productID, domrepo.ErrNotFound)
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("postgres: get product: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM "Product" ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list products: %w", err)
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CurrentStock, &p.ReorderPoint, &p.OverstockLimit, &p.ExpiryDate); err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveRun writes the run and its points in one transaction and returns the
// generated run id.
func (s *PostgresStore) SaveRun(ctx context.Context, run *models.ForecastRun) (string, error) {
	start := time.Now()
	docs, err := encodeRunDocs(run)
	if err != nil {
		return "", err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int32
	err = tx.QueryRow(ctx, `
		INSERT INTO "ForecastRun"
		("productId", method, horizon, mae, accuracy, "bandPolicy", fallback, "fallbackCause",
		 explanations, "featureImportance", weights, risk, "createdAt")
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13)
		RETURNING id
	`, run.ProductID, run.Model, run.Horizon, run.MAE, run.Accuracy, run.BandPolicy, run.Fallback, run.FallbackCause,
		docs.explanations, docs.importance, docs.weights, docs.risk, run.CreatedAt).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("postgres: insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, p := range run.Points {
		batch.Queue(`
			INSERT INTO "ForecastPoint" ("runId", period, predicted, lower95, upper95, "createdAt")
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, p.Date, p.Point, p.Lower, p.Upper, run.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return "", fmt.Errorf("postgres: insert points: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("postgres: commit: %w", err)
	}

	runID := strconv.FormatInt(int64(id), 10)
	s.l.Debug("postgres forecast run saved",
		applogger.String("run_id", runID),
		applogger.Int64("product_id", run.ProductID),
		applogger.Int("points", len(run.Points)),
		applogger.Duration("duration_ms", time.Since(start)))
	return runID, nil
}

func (s *PostgresStore) LatestRun(ctx context.Context, productID int64) (*models.ForecastRun, error) {
	var (
		run  models.ForecastRun
		id   int32
		docs runDocs
		why  *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, "productId", method, horizon, mae, accuracy, "bandPolicy", fallback, "fallbackCause",
		       explanations, "featureImportance", weights, risk, "createdAt"
		FROM "ForecastRun"
		WHERE "productId" = $1
		ORDER BY "createdAt" DESC, id DESC
		LIMIT 1
	`, productID).Scan(&id, &run.ProductID, &run.Model, &run.Horizon, &run.MAE, &run.Accuracy, &run.BandPolicy,
		&run.Fallback, &why, &docs.explanations, &docs.importance, &docs.weights, &docs.risk, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("forecast for product %d: %w", productID, domrepo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: latest run: %w", err)
	}
	run.RunID = strconv.FormatInt(int64(id), 10)
	if why != nil {
		run.FallbackCause = *why
	}
	if err := docs.decodeInto(&run); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT period, predicted, lower95, upper95
		FROM "ForecastPoint"
		WHERE "runId" = $1
		ORDER BY period ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: query points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.ForecastPoint
		if err := rows.Scan(&p.Date, &p.Point, &p.Lower, &p.Upper); err != nil {
			return nil, fmt.Errorf("postgres: scan point: %w", err)
		}
		p.Date = p.Date.UTC()
		run.Points = append(run.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: point rows: %w", err)
	}
	return &run, nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// runDocs holds the JSON columns of a run.
type runDocs struct {
	explanations []byte
	importance   []byte
	weights      []byte
	risk         []byte
}

func encodeRunDocs(run *models.ForecastRun) (runDocs, error) {
	var (
		d   runDocs
		err error
	)
	if d.explanations, err = json.Marshal(run.Explanations); err != nil {
		return d, fmt.Errorf("encode explanations: %w", err)
	}
	if d.importance, err = json.Marshal(run.FeatureImportance); err != nil {
		return d, fmt.Errorf("encode feature importance: %w", err)
	}
	if d.weights, err = json.Marshal(run.Weights); err != nil {
		return d, fmt.Errorf("encode weights: %w", err)
	}
	if run.Risk != nil {
		if d.risk, err = json.Marshal(run.Risk); err != nil {
			return d, fmt.Errorf("encode risk: %w", err)
		}
	}
	return d, nil
}

func (d runDocs) decodeInto(run *models.ForecastRun) error {
	fields := []struct {
		name string
		raw  []byte
		dst  interface{}
	}{
		{"explanations", d.explanations, &run.Explanations},
		{"feature importance", d.importance, &run.FeatureImportance},
		{"weights", d.weights, &run.Weights},
	}
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return fmt.Errorf("decode %s: %w", f.name, err)
		}
	}
	if len(d.risk) > 0 && string(d.risk) != "null" {
		run.Risk = &models.RiskAssessment{}
		if err := json.Unmarshal(d.risk, run.Risk); err != nil {
			return fmt.Errorf("decode risk: %w", err)
		}
	}
	return nil
}
