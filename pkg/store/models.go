package store

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"autohaus/pkg/domain"
)

// GORM models used for persistence. The comma-delimited representation of
// Sicherheitsmerkmale keeps the column searchable with LIKE predicates.
type AutoModel struct {
	ID                  uint             `gorm:"primaryKey"`
	Version             int              `gorm:"not null;default:0"`
	Fahrgestellnummer   string           `gorm:"uniqueIndex;size:17;not null"`
	Marke               string           `gorm:"size:40;not null"`
	Modell              string           `gorm:"size:40;not null"`
	Baujahr             int              `gorm:"not null"`
	Art                 string           `gorm:"size:12"`
	Preis               decimal.Decimal  `gorm:"type:decimal(8,2)"`
	Sicherheitsmerkmale string           `gorm:"size:64"`
	Erzeugt             time.Time        `gorm:"not null"`
	Aktualisiert        time.Time        `gorm:"not null"`
	Motor               *MotorModel      `gorm:"foreignKey:AutoID"`
	Reperaturen         []ReperaturModel `gorm:"foreignKey:AutoID"`
}

func (AutoModel) TableName() string { return "autos" }

type MotorModel struct {
	ID       uint            `gorm:"primaryKey"`
	Name     string          `gorm:"size:40;not null"`
	PS       int             `gorm:"column:ps;not null"`
	Zylinder int             `gorm:"not null"`
	Drehzahl decimal.Decimal `gorm:"type:decimal(4,3)"`
	AutoID   uint            `gorm:"index;not null"`
}

func (MotorModel) TableName() string { return "motors" }

type ReperaturModel struct {
	ID         uint            `gorm:"primaryKey"`
	Kosten     decimal.Decimal `gorm:"type:decimal(8,2)"`
	Mechaniker string          `gorm:"size:32;not null"`
	Datum      datatypes.Date
	AutoID     uint `gorm:"index;not null"`
}

func (ReperaturModel) TableName() string { return "reperaturen" }

type AutoFileModel struct {
	ID       uint   `gorm:"primaryKey"`
	Filename string `gorm:"size:128;not null"`
	Mimetype string `gorm:"size:64;not null"`
	Data     []byte `gorm:"type:bytea"`
	AutoID   uint   `gorm:"uniqueIndex;not null"`
}

func (AutoFileModel) TableName() string { return "auto_files" }

func autoToModel(a *domain.Auto) AutoModel {
	m := AutoModel{
		ID:                  a.ID,
		Version:             a.Version,
		Fahrgestellnummer:   a.Fahrgestellnummer,
		Marke:               a.Marke,
		Modell:              a.Modell,
		Baujahr:             a.Baujahr,
		Art:                 string(a.Art),
		Preis:               a.Preis,
		Sicherheitsmerkmale: joinMerkmale(a.Sicherheitsmerkmale),
		Erzeugt:             a.Erzeugt,
		Aktualisiert:        a.Aktualisiert,
	}
	if a.Motor != nil {
		m.Motor = &MotorModel{
			ID:       a.Motor.ID,
			Name:     a.Motor.Name,
			PS:       a.Motor.PS,
			Zylinder: a.Motor.Zylinder,
			Drehzahl: a.Motor.Drehzahl,
		}
	}
	for _, r := range a.Reperaturen {
		m.Reperaturen = append(m.Reperaturen, ReperaturModel{
			ID:         r.ID,
			Kosten:     r.Kosten,
			Mechaniker: r.Mechaniker,
			Datum:      parseDatum(r.Datum),
			AutoID:     r.AutoID,
		})
	}
	return m
}

func autoFromModel(m AutoModel) domain.Auto {
	a := domain.Auto{
		ID:                  m.ID,
		Version:             m.Version,
		Fahrgestellnummer:   m.Fahrgestellnummer,
		Marke:               m.Marke,
		Modell:              m.Modell,
		Baujahr:             m.Baujahr,
		Art:                 domain.AutoArt(m.Art),
		Preis:               m.Preis,
		Sicherheitsmerkmale: splitMerkmale(m.Sicherheitsmerkmale),
		Erzeugt:             m.Erzeugt,
		Aktualisiert:        m.Aktualisiert,
	}
	if m.Motor != nil {
		a.Motor = &domain.Motor{
			ID:       m.Motor.ID,
			Name:     m.Motor.Name,
			PS:       m.Motor.PS,
			Zylinder: m.Motor.Zylinder,
			Drehzahl: m.Motor.Drehzahl,
			AutoID:   m.Motor.AutoID,
		}
	}
	for _, r := range m.Reperaturen {
		a.Reperaturen = append(a.Reperaturen, domain.Reperatur{
			ID:         r.ID,
			Kosten:     r.Kosten,
			Mechaniker: r.Mechaniker,
			Datum:      formatDatum(r.Datum),
			AutoID:     r.AutoID,
		})
	}
	return a
}

func fileFromModel(m AutoFileModel) domain.AutoFile {
	return domain.AutoFile{
		ID:       m.ID,
		Filename: m.Filename,
		Mimetype: m.Mimetype,
		Data:     m.Data,
		AutoID:   m.AutoID,
	}
}

func joinMerkmale(merkmale []string) string {
	if len(merkmale) == 0 {
		return ""
	}
	upper := make([]string, 0, len(merkmale))
	for _, m := range merkmale {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m != "" {
			upper = append(upper, m)
		}
	}
	return strings.Join(upper, ",")
}

func splitMerkmale(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func parseDatum(s string) datatypes.Date {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return datatypes.Date{}
	}
	return datatypes.Date(t)
}

func formatDatum(d datatypes.Date) string {
	t := time.Time(d)
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
