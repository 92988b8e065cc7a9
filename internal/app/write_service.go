package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"autohaus/internal/notify"
	"autohaus/pkg/domain"
	"autohaus/pkg/store"
)

// WriteService implements the write use cases of the Auto aggregate:
// create, update with optimistic locking, the cascading delete and the
// attachment replace.
type WriteService struct {
	store  store.Store
	reader *ReadService
	mailer notify.Mailer
	cache  AutoCache // nil when no cache is configured
	logger *slog.Logger
}

// NewWriteService constructs the write service.
func NewWriteService(st store.Store, reader *ReadService, mailer notify.Mailer, cache AutoCache, logger *slog.Logger) *WriteService {
	if mailer == nil {
		mailer = notify.NoopMailer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WriteService{store: st, reader: reader, mailer: mailer, cache: cache, logger: logger}
}

// Create persists a new Auto together with its Motor and Reperaturen and
// returns the generated identifier. The chassis number must not exist yet;
// the unique index on the column backstops the race window of this check.
func (s *WriteService) Create(ctx context.Context, a *domain.Auto) (uint, error) {
	exists, err := s.store.FahrgestellnummerExists(ctx, a.Fahrgestellnummer)
	if err != nil {
		return 0, fmt.Errorf("check fahrgestellnummer: %w", err)
	}
	if exists {
		return 0, &domain.FahrgestellnummerExistsError{Fahrgestellnummer: a.Fahrgestellnummer}
	}

	now := time.Now().UTC()
	a.Version = 0
	a.Erzeugt = now
	a.Aktualisiert = now
	id, err := s.store.CreateAuto(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("create auto: %w", err)
	}
	a.ID = id
	s.sendMail(a)
	return id, nil
}

// Update applies the incoming scalar fields to the persisted Auto guarded by
// the optimistic-lock token and returns the new version. Identifier,
// version, Fahrgestellnummer and relations are never overwritten by the
// merge.
func (s *WriteService) Update(ctx context.Context, id uint, a *domain.Auto, versionToken string) (int, error) {
	version, err := domain.ParseVersion(versionToken)
	if err != nil {
		return 0, err
	}

	persisted, err := s.reader.FindCurrent(ctx, id, false)
	if err != nil {
		return 0, err
	}
	if version < persisted.Version {
		return 0, &domain.VersionOutdatedError{Version: version}
	}

	persisted.Marke = a.Marke
	persisted.Modell = a.Modell
	persisted.Baujahr = a.Baujahr
	persisted.Art = a.Art
	persisted.Preis = a.Preis
	persisted.Sicherheitsmerkmale = a.Sicherheitsmerkmale
	persisted.Aktualisiert = time.Now().UTC()

	newVersion, err := s.store.UpdateAuto(ctx, persisted)
	if errors.Is(err, store.ErrVersionConflict) {
		// a concurrent writer committed between the re-read and the write
		return 0, &domain.VersionOutdatedError{Version: version}
	}
	if err != nil {
		return 0, fmt.Errorf("update auto %d: %w", id, err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return newVersion, nil
}

// Delete removes the Auto with its Motor, Reperaturen and any attachment in
// one transaction. Reports whether the Auto row was deleted.
func (s *WriteService) Delete(ctx context.Context, id uint) (bool, error) {
	persisted, err := s.reader.FindCurrent(ctx, id, true)
	if err != nil {
		return false, err
	}
	ok, err := s.store.DeleteAuto(ctx, persisted)
	if err != nil {
		return false, fmt.Errorf("delete auto %d: %w", id, err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return ok, nil
}

// AddFile stores a binary attachment for an existing Auto, replacing any
// prior one.
func (s *WriteService) AddFile(ctx context.Context, id uint, data []byte, filename, mimetype string) (*domain.AutoFile, error) {
	if _, err := s.reader.FindByID(ctx, id, false); err != nil {
		return nil, err
	}
	file := &domain.AutoFile{
		Filename: filename,
		Mimetype: mimetype,
		Data:     data,
	}
	if err := s.store.ReplaceFile(ctx, id, file); err != nil {
		return nil, fmt.Errorf("replace file for auto %d: %w", id, err)
	}
	return file, nil
}

func (s *WriteService) sendMail(a *domain.Auto) {
	subject := fmt.Sprintf("Neues Auto %d", a.ID)
	motorName := "N/A"
	if a.Motor != nil {
		motorName = a.Motor.Name
	}
	body := fmt.Sprintf("Das Auto \"%s %s\" mit dem Motornamen <strong>%s</strong> ist angelegt.", a.Marke, a.Modell, motorName)
	id := a.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.mailer.Send(ctx, subject, body); err != nil {
			s.logger.Warn("mail notification failed", "auto_id", id, "error", err)
		}
	}()
}
