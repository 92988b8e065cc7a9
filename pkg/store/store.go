package store

import (
	"context"
	"errors"

	"autohaus/pkg/domain"
)

// ErrVersionConflict is returned by UpdateAuto when the conditional UPDATE
// keyed on the previously read version affected no row, i.e. a concurrent
// writer committed first.
var ErrVersionConflict = errors.New("version conflict")

// Store defines persistence operations for the Auto aggregate.
type Store interface {
	// reads
	FindAutoByID(ctx context.Context, id uint, mitReperaturen bool) (*domain.Auto, bool, error)
	SearchAutos(ctx context.Context, c Criteria, p Pageable) ([]domain.Auto, int64, error)
	FahrgestellnummerExists(ctx context.Context, fahrgestellnummer string) (bool, error)

	// writes
	CreateAuto(ctx context.Context, a *domain.Auto) (uint, error)
	// UpdateAuto persists the merged aggregate state and assigns the
	// incremented version. a.Version must hold the version the caller read.
	UpdateAuto(ctx context.Context, a *domain.Auto) (int, error)
	// DeleteAuto removes Motor, Reperaturen, any AutoFile and the Auto row
	// in one transaction. Reports whether the Auto row was affected.
	DeleteAuto(ctx context.Context, a *domain.Auto) (bool, error)

	// attachment
	ReplaceFile(ctx context.Context, autoID uint, file *domain.AutoFile) error
	FindFile(ctx context.Context, autoID uint) (*domain.AutoFile, bool, error)
}
