package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
)

// MemoryStore is a process-local Storage used by the CSV command and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]models.Product
	sales    map[int64][]models.Observation
	runs     map[int64][]*models.ForecastRun
	nextID   int64
}

var _ domrepo.Storage = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]models.Product),
		sales:    make(map[int64][]models.Observation),
		runs:     make(map[int64][]*models.ForecastRun),
	}
}

// PutProduct inserts or replaces a product.
func (s *MemoryStore) PutProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// AddSales appends observations for a product.
func (s *MemoryStore) AddSales(productID int64, obs ...models.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales[productID] = append(s.sales[productID], obs...)
}

func (s *MemoryStore) Init(context.Context) error { return nil }

func (s *MemoryStore) FetchObservations(_ context.Context, productID int64) ([]models.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.Observation(nil), s.sales[productID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryStore) GetProduct(_ context.Context, productID int64) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok {
		return models.Product{}, fmt.Errorf("product %d: %w", productID, domrepo.ErrNotFound)
	}
	return p, nil
}

func (s *MemoryStore) ListProducts(context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run *models.ForecastRun) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *run
	cp.RunID = strconv.FormatInt(s.nextID, 10)
	cp.Points = append([]models.ForecastPoint(nil), run.Points...)
	s.runs[run.ProductID] = append(s.runs[run.ProductID], &cp)
	return cp.RunID, nil
}

func (s *MemoryStore) LatestRun(_ context.Context, productID int64) (*models.ForecastRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := s.runs[productID]
	if len(runs) == 0 {
		return nil, fmt.Errorf("forecast for product %d: %w", productID, domrepo.ErrNotFound)
	}
	cp := *runs[len(runs)-1]
	return &cp, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
