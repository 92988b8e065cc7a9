package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"autohaus/pkg/domain"
	"autohaus/pkg/store"
)

type recordingMailer struct {
	sent chan [2]string // subject, body
	err  error
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{sent: make(chan [2]string, 1)}
}

func (m *recordingMailer) Send(_ context.Context, subject, body string) error {
	m.sent <- [2]string{subject, body}
	return m.err
}

func newServices(t *testing.T, mailer *recordingMailer) (*ReadService, *WriteService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	reader := NewReadService(st, nil)
	if mailer == nil {
		mailer = newRecordingMailer()
	}
	writer := NewWriteService(st, reader, mailer, nil, nil)
	return reader, writer, st
}

func neuesAuto(fgnr string) *domain.Auto {
	return &domain.Auto{
		Fahrgestellnummer:   fgnr,
		Marke:               "VW",
		Modell:              "Golf",
		Baujahr:             2020,
		Art:                 domain.ArtKombi,
		Preis:               decimal.RequireFromString("19999.99"),
		Sicherheitsmerkmale: []string{"ABS", "AIRBAG"},
		Motor: &domain.Motor{
			Name:     "Beta",
			PS:       150,
			Zylinder: 6,
			Drehzahl: decimal.RequireFromString("1500.8"),
		},
		Reperaturen: []domain.Reperatur{
			{Kosten: decimal.RequireFromString("78.90"), Mechaniker: "Hans", Datum: "2024-01-31"},
		},
	}
}

func TestCreateReturnsIDAndVersionZero(t *testing.T) {
	reader, writer, _ := newServices(t, nil)
	ctx := context.Background()

	id, err := writer.Create(ctx, neuesAuto("WVWZZZ1JZXW000001"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := reader.FindByID(ctx, id, false)
	if err != nil {
		t.Fatalf("FindByID(%d): %v", id, err)
	}
	if got.Version != 0 {
		t.Fatalf("version after create: got %d, want 0", got.Version)
	}
}

func TestCreateRoundTripsMotorFields(t *testing.T) {
	reader, writer, _ := newServices(t, nil)
	ctx := context.Background()

	id, err := writer.Create(ctx, neuesAuto("WVWZZZ1JZXW000010"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := reader.FindByID(ctx, id, false)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	motor := got.Motor
	if motor == nil {
		t.Fatal("motor missing after round trip")
	}
	if motor.Name != "Beta" || motor.PS != 150 || motor.Zylinder != 6 {
		t.Fatalf("motor fields: %+v", motor)
	}
	if !motor.Drehzahl.Equal(decimal.RequireFromString("1500.8")) {
		t.Fatalf("drehzahl: got %s, want 1500.8", motor.Drehzahl)
	}
}

func TestCreateRejectsDuplicateFahrgestellnummer(t *testing.T) {
	_, writer, _ := newServices(t, nil)
	ctx := context.Background()

	if _, err := writer.Create(ctx, neuesAuto("WVWZZZ1JZXW000002")); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := writer.Create(ctx, neuesAuto("WVWZZZ1JZXW000002"))
	var exists *domain.FahrgestellnummerExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("expected FahrgestellnummerExistsError, got %v", err)
	}
	if exists.Fahrgestellnummer != "WVWZZZ1JZXW000002" {
		t.Fatalf("error carries %q", exists.Fahrgestellnummer)
	}
}

func TestCreateTriggersNotification(t *testing.T) {
	mailer := newRecordingMailer()
	_, writer, _ := newServices(t, mailer)

	id, err := writer.Create(context.Background(), neuesAuto("WVWZZZ1JZXW000003"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	select {
	case msg := <-mailer.sent:
		wantSubject := "Neues Auto 1"
		if id != 1 {
			t.Fatalf("unexpected id %d", id)
		}
		if msg[0] != wantSubject {
			t.Fatalf("subject: got %q, want %q", msg[0], wantSubject)
		}
		for _, want := range []string{"VW", "Golf", "Beta"} {
			if !strings.Contains(msg[1], want) {
				t.Fatalf("body %q missing %q", msg[1], want)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification not sent")
	}
}

func TestCreateSucceedsWhenMailerFails(t *testing.T) {
	mailer := newRecordingMailer()
	mailer.err = errors.New("smtp down")
	reader, writer, _ := newServices(t, mailer)
	ctx := context.Background()

	id, err := writer.Create(ctx, neuesAuto("WVWZZZ1JZXW000004"))
	if err != nil {
		t.Fatalf("Create must not fail on mailer error: %v", err)
	}
	<-mailer.sent
	if _, err := reader.FindByID(ctx, id, false); err != nil {
		t.Fatalf("auto not persisted: %v", err)
	}
}

func TestUpdateIncrementsVersionByOne(t *testing.T) {
	reader, writer, _ := newServices(t, nil)
	ctx := context.Background()
	id, _ := writer.Create(ctx, neuesAuto("WVWZZZ1JZXW000005"))

	changed := neuesAuto("ignored")
	changed.Marke = "Audi"
	newVersion, err := writer.Update(ctx, id, changed, `"0"`)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if newVersion != 1 {
		t.Fatalf("new version: got %d, want 1", newVersion)
	}

	got, _ := reader.FindByID(ctx, id, false)
	if got.Version != 1 || got.Marke != "Audi" {
		t.Fatalf("persisted state: %+v", got)
	}
	// Fahrgestellnummer is immutable and must survive the merge
	if got.Fahrgestellnummer != "WVWZZZ1JZXW000005" {
		t.Fatalf("fahrgestellnummer overwritten: %q", got.Fahrgestellnummer)
	}

	// a second update with the fresh version succeeds again
	if v, err := writer.Update(ctx, id, changed, `"1"`); err != nil || v != 2 {
		t.Fatalf("second Update: v=%d err=%v", v, err)
	}
}

func TestUpdateAcceptsNewerToken(t *testing.T) {
	_, writer, _ := newServices(t, nil)
	ctx := context.Background()
	id, _ := writer.Create(ctx, neuesAuto("WVWZZZ1JZXW000006"))

	// token greater than the persisted version is not outdated
	if v, err := writer.Update(ctx, id, neuesAuto("x"), `"5"`); err != nil || v != 1 {
		t.Fatalf("Update with newer token: v=%d err=%v", v, err)
	}
}

func TestUpdateStaleVersion(t *testing.T) {
	_, writer, _ := newServices(t, nil)
	ctx := context.Background()
	id, _ := writer.Create(ctx, neuesAuto("WVWZZZ1JZXW000007"))
	if _, err := writer.Update(ctx, id, neuesAuto("x"), `"0"`); err != nil {
		t.Fatalf("Update: %v", err)
	}

	_, err := writer.Update(ctx, id, neuesAuto("x"), `"0"`)
	var outdated *domain.VersionOutdatedError
	if !errors.As(err, &outdated) {
		t.Fatalf("expected VersionOutdatedError, got %v", err)
	}
	if outdated.Version != 0 {
		t.Fatalf("error carries version %d, want 0", outdated.Version)
	}
}

func TestUpdateInvalidTokenRegardlessOfID(t *testing.T) {
	_, writer, _ := newServices(t, nil)
	ctx := context.Background()
	id, _ := writer.Create(ctx, neuesAuto("WVWZZZ1JZXW000008"))

	for _, targetID := range []uint{id, 9999} {
		_, err := writer.Update(ctx, targetID, neuesAuto("x"), "kaputt")
		var invalid *domain.VersionInvalidError
		if !errors.As(err, &invalid) {
			t.Fatalf("id %d: expected VersionInvalidError, got %v", targetID, err)
		}
	}
}

func TestUpdateUnknownID(t *testing.T) {
	_, writer, _ := newServices(t, nil)
	_, err := writer.Update(context.Background(), 42, neuesAuto("x"), `"0"`)
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.ID != 42 {
		t.Fatalf("error carries id %d", notFound.ID)
	}
}

func TestDeleteRemovesWholeAggregate(t *testing.T) {
	reader, writer, st := newServices(t, nil)
	ctx := context.Background()
	id, _ := writer.Create(ctx, neuesAuto("WVWZZZ1JZXW000009"))
	if _, err := writer.AddFile(ctx, id, []byte{0xff, 0xd8}, "foto.jpg", "image/jpeg"); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	ok, err := writer.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if _, err := reader.FindByID(ctx, id, true); err == nil {
		t.Fatal("auto still readable after delete")
	}
	if _, found, _ := st.FindFile(ctx, id); found {
		t.Fatal("attachment survived the delete")
	}
}

// deleteFailingStore simulates a delete transaction that rolls back.
type deleteFailingStore struct {
	*store.MemoryStore
}

func (s *deleteFailingStore) DeleteAuto(context.Context, *domain.Auto) (bool, error) {
	return false, errors.New("deadlock detected")
}

func TestDeleteFailureLeavesAggregateIntact(t *testing.T) {
	st := &deleteFailingStore{MemoryStore: store.NewMemoryStore()}
	reader := NewReadService(st, nil)
	writer := NewWriteService(st, reader, nil, nil, nil)
	ctx := context.Background()

	id, err := writer.Create(ctx, neuesAuto("WVWZZZ1JZXW000012"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := writer.AddFile(ctx, id, []byte{1, 2}, "foto.jpg", "image/jpeg"); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	if _, err := writer.Delete(ctx, id); err == nil {
		t.Fatal("expected the failed delete to surface an error")
	}

	got, err := reader.FindByID(ctx, id, true)
	if err != nil {
		t.Fatalf("auto gone after rolled-back delete: %v", err)
	}
	if got.Motor == nil || len(got.Reperaturen) != 1 {
		t.Fatalf("aggregate damaged after rolled-back delete: %+v", got)
	}
	if _, err := reader.FindFile(ctx, id); err != nil {
		t.Fatalf("attachment gone after rolled-back delete: %v", err)
	}
}

func TestDeleteUnknownID(t *testing.T) {
	_, writer, _ := newServices(t, nil)
	_, err := writer.Delete(context.Background(), 4711)
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestAddFileReplacesExisting(t *testing.T) {
	reader, writer, _ := newServices(t, nil)
	ctx := context.Background()
	id, _ := writer.Create(ctx, neuesAuto("WVWZZZ1JZXW000011"))

	if _, err := writer.AddFile(ctx, id, []byte{1}, "alt.png", "image/png"); err != nil {
		t.Fatalf("first AddFile: %v", err)
	}
	file, err := writer.AddFile(ctx, id, []byte{2, 3}, "neu.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("second AddFile: %v", err)
	}
	if file.Filename != "neu.jpg" || file.Mimetype != "image/jpeg" {
		t.Fatalf("returned file: %+v", file)
	}

	got, err := reader.FindFile(ctx, id)
	if err != nil {
		t.Fatalf("FindFile: %v", err)
	}
	if got.Filename != "neu.jpg" || len(got.Data) != 2 {
		t.Fatalf("stored file: %+v", got)
	}
}

func TestAddFileUnknownAuto(t *testing.T) {
	_, writer, _ := newServices(t, nil)
	_, err := writer.AddFile(context.Background(), 4711, []byte{1}, "x.png", "image/png")
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
