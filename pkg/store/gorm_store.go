package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"autohaus/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&AutoModel{}, &MotorModel{}, &ReperaturModel{}, &AutoFileModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// FindAutoByID loads one Auto with its Motor. An Auto without a Motor is
// never returned; Reperaturen are loaded only on request.
func (s *GormStore) FindAutoByID(ctx context.Context, id uint, mitReperaturen bool) (*domain.Auto, bool, error) {
	q := s.db.WithContext(ctx).
		Joins("INNER JOIN motors ON motors.auto_id = autos.id").
		Preload("Motor")
	if mitReperaturen {
		q = q.Preload("Reperaturen")
	}
	var m AutoModel
	if err := q.First(&m, "autos.id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	a := autoFromModel(m)
	return &a, true, nil
}

// SearchAutos folds the ordered predicates of the criteria bag into one
// conjunctive query and returns the requested page plus the total count.
func (s *GormStore) SearchAutos(ctx context.Context, c Criteria, p Pageable) ([]domain.Auto, int64, error) {
	q := s.db.WithContext(ctx).Model(&AutoModel{}).
		Joins("INNER JOIN motors ON motors.auto_id = autos.id")
	for _, pred := range BuildPredicates(c) {
		q = q.Where(pred.Condition, pred.Args...)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Preload("Motor").Order("autos.id ASC")
	if p.Size > 0 {
		q = q.Limit(p.Size).Offset(p.Number * p.Size)
	}
	var models []AutoModel
	if err := q.Find(&models).Error; err != nil {
		return nil, 0, err
	}
	autos := make([]domain.Auto, 0, len(models))
	for _, m := range models {
		autos = append(autos, autoFromModel(m))
	}
	return autos, total, nil
}

// FahrgestellnummerExists checks for an exact chassis-number match.
func (s *GormStore) FahrgestellnummerExists(ctx context.Context, fahrgestellnummer string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&AutoModel{}).
		Where("fahrgestellnummer = ?", fahrgestellnummer).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateAuto persists the aggregate with Motor and Reperaturen; the foreign
// keys back to the Auto row are assigned by the association save.
func (s *GormStore) CreateAuto(ctx context.Context, a *domain.Auto) (uint, error) {
	m := autoToModel(a)
	m.ID = 0
	if m.Motor != nil {
		m.Motor.ID = 0
	}
	for i := range m.Reperaturen {
		m.Reperaturen[i].ID = 0
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return 0, err
	}
	return m.ID, nil
}

// UpdateAuto writes the scalar fields guarded by a conditional UPDATE on the
// version that was read. The version column is incremented by exactly 1; a
// concurrent writer makes the condition miss and yields ErrVersionConflict.
func (s *GormStore) UpdateAuto(ctx context.Context, a *domain.Auto) (int, error) {
	newVersion := a.Version + 1
	res := s.db.WithContext(ctx).Model(&AutoModel{}).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Updates(map[string]any{
			"marke":               a.Marke,
			"modell":              a.Modell,
			"baujahr":             a.Baujahr,
			"art":                 string(a.Art),
			"preis":               a.Preis,
			"sicherheitsmerkmale": joinMerkmale(a.Sicherheitsmerkmale),
			"version":             newVersion,
			"aktualisiert":        a.Aktualisiert,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrVersionConflict
	}
	return newVersion, nil
}

// DeleteAuto removes the whole aggregate in one transaction, children before
// the parent to satisfy the foreign keys: Motor, each Reperatur, any
// AutoFile, then the Auto row.
func (s *GormStore) DeleteAuto(ctx context.Context, a *domain.Auto) (bool, error) {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if a.Motor != nil && a.Motor.ID != 0 {
			if err := tx.Delete(&MotorModel{}, a.Motor.ID).Error; err != nil {
				return err
			}
		}
		for _, r := range a.Reperaturen {
			if err := tx.Delete(&ReperaturModel{}, r.ID).Error; err != nil {
				return err
			}
		}
		var file AutoFileModel
		if err := tx.First(&file, "auto_id = ?", a.ID).Error; err == nil {
			if err := tx.Delete(&AutoFileModel{}, file.ID).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		res := tx.Delete(&AutoModel{}, a.ID)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ReplaceFile swaps the attachment of an Auto: the prior row is deleted and
// the new one inserted within one transaction.
func (s *GormStore) ReplaceFile(ctx context.Context, autoID uint, file *domain.AutoFile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&AutoFileModel{}, "auto_id = ?", autoID).Error; err != nil {
			return err
		}
		m := AutoFileModel{
			Filename: file.Filename,
			Mimetype: file.Mimetype,
			Data:     file.Data,
			AutoID:   autoID,
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		file.ID = m.ID
		file.AutoID = autoID
		return nil
	})
}

// FindFile returns the attachment of an Auto, if any.
func (s *GormStore) FindFile(ctx context.Context, autoID uint) (*domain.AutoFile, bool, error) {
	var m AutoFileModel
	if err := s.db.WithContext(ctx).First(&m, "auto_id = ?", autoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	f := fileFromModel(m)
	return &f, true, nil
}
