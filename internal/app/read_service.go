package app

import (
	"context"
	"fmt"

	"autohaus/pkg/domain"
	"autohaus/pkg/store"
)

// IDPattern recognizes a trailing Auto identifier in a request path.
const IDPattern = `^\d+$`

// AutoCache is the optional read cache consulted by FindByID.
type AutoCache interface {
	Get(ctx context.Context, id uint) (*domain.Auto, bool)
	Put(ctx context.Context, a *domain.Auto)
	Invalidate(ctx context.Context, id uint)
}

// ReadService implements the read use cases of the Auto aggregate.
type ReadService struct {
	store store.Store
	cache AutoCache // nil when no cache is configured
}

// NewReadService constructs the read service.
func NewReadService(st store.Store, cache AutoCache) *ReadService {
	return &ReadService{store: st, cache: cache}
}

// FindByID returns one Auto with its Motor, optionally with Reperaturen.
// Plain lookups go through the cache; lookups with Reperaturen always hit
// the store.
func (s *ReadService) FindByID(ctx context.Context, id uint, mitReperaturen bool) (*domain.Auto, error) {
	if !mitReperaturen && s.cache != nil {
		if a, ok := s.cache.Get(ctx, id); ok {
			return a, nil
		}
	}
	a, err := s.FindCurrent(ctx, id, mitReperaturen)
	if err != nil {
		return nil, err
	}
	if !mitReperaturen && s.cache != nil {
		s.cache.Put(ctx, a)
	}
	return a, nil
}

// FindCurrent loads the persisted state directly from the store, bypassing
// the cache. The write path uses it so that the optimistic-lock comparison
// runs against a freshly re-read row.
func (s *ReadService) FindCurrent(ctx context.Context, id uint, mitReperaturen bool) (*domain.Auto, error) {
	a, ok, err := s.store.FindAutoByID(ctx, id, mitReperaturen)
	if err != nil {
		return nil, fmt.Errorf("find auto %d: %w", id, err)
	}
	if !ok {
		return nil, &domain.NotFoundError{ID: id}
	}
	return a, nil
}

// FindFile returns the attachment of an Auto.
func (s *ReadService) FindFile(ctx context.Context, id uint) (*domain.AutoFile, error) {
	file, ok, err := s.store.FindFile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find file for auto %d: %w", id, err)
	}
	if !ok {
		return nil, &domain.NotFoundError{ID: id}
	}
	return file, nil
}

// Find returns one page of Autos matching the criteria. An empty result is
// reported as a NotFoundError enumerating the rejected criteria.
func (s *ReadService) Find(ctx context.Context, criteria store.Criteria, pageable store.Pageable) (*domain.Page, error) {
	if criteria == nil {
		criteria = store.Criteria{}
	}
	autos, total, err := s.store.SearchAutos(ctx, criteria, pageable)
	if err != nil {
		return nil, fmt.Errorf("search autos: %w", err)
	}
	if len(autos) == 0 {
		return nil, &domain.NotFoundError{Criteria: criteria}
	}
	return &domain.Page{
		Content: autos,
		Total:   total,
		Size:    pageable.Size,
		Number:  pageable.Number,
	}, nil
}
