package server

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"autohaus/pkg/domain"
)

// MotorDTO carries the engine of an incoming Auto payload.
type MotorDTO struct {
	Name     string          `json:"name"`
	PS       int             `json:"ps"`
	Zylinder int             `json:"zylinder"`
	Drehzahl decimal.Decimal `json:"drehzahl"`
}

// ReperaturDTO carries one repair record of an incoming Auto payload.
type ReperaturDTO struct {
	Kosten     decimal.Decimal `json:"kosten"`
	Mechaniker string          `json:"mechaniker"`
	Datum      string          `json:"datum"`
}

// AutoDTO is the request body for POST /rest. PUT /rest/{id} uses the same
// shape; Fahrgestellnummer and Reperaturen are ignored there because the
// chassis number is immutable and repairs are not merged.
type AutoDTO struct {
	Fahrgestellnummer   string          `json:"fahrgestellnummer"`
	Marke               string          `json:"marke"`
	Modell              string          `json:"modell"`
	Baujahr             int             `json:"baujahr"`
	Art                 string          `json:"art"`
	Preis               decimal.Decimal `json:"preis"`
	Sicherheitsmerkmale []string        `json:"sicherheitsmerkmale"`
	Motor               *MotorDTO       `json:"motor"`
	Reperaturen         []ReperaturDTO  `json:"reperaturen"`
}

var (
	mechanikerPattern = regexp.MustCompile(`^[A-ZÄÖÜa-zäöüß][A-ZÄÖÜa-zäöüß\- ]*$`)
	datumPattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Validate checks the payload shape. forCreate additionally requires the
// fields that only matter on insert.
func (d *AutoDTO) Validate(forCreate bool) error {
	var msgs []string
	add := func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	}

	if forCreate && d.Fahrgestellnummer == "" {
		add("Die Fahrgestellnummer fehlt.")
	}
	if len(d.Fahrgestellnummer) > 17 {
		add("Die Fahrgestellnummer darf maximal 17 Zeichen lang sein.")
	}
	if d.Marke == "" {
		add("Die Marke fehlt.")
	}
	if d.Modell == "" {
		add("Das Modell fehlt.")
	}
	if d.Baujahr < 1885 || d.Baujahr > time.Now().Year()+1 {
		add("Das Baujahr %d ist nicht plausibel.", d.Baujahr)
	}
	if _, ok := domain.ParseAutoArt(d.Art); !ok {
		add("Die Art %q ist keine gueltige Autoart.", d.Art)
	}
	if d.Preis.IsNegative() {
		add("Der Preis darf nicht negativ sein.")
	}

	if forCreate {
		switch m := d.Motor; {
		case m == nil:
			add("Der Motor fehlt.")
		default:
			if m.Name == "" {
				add("Der Motorname fehlt.")
			}
			if m.PS < 0 || m.PS > domain.MaxPS {
				add("Die PS-Zahl %d liegt nicht zwischen 0 und %d.", m.PS, domain.MaxPS)
			}
			if m.Zylinder < 0 || m.Zylinder > domain.MaxZylinder {
				add("Die Zylinderzahl %d liegt nicht zwischen 0 und %d.", m.Zylinder, domain.MaxZylinder)
			}
			if m.Drehzahl.IsNegative() {
				add("Die Drehzahl darf nicht negativ sein.")
			}
		}
		for i, rep := range d.Reperaturen {
			if rep.Mechaniker != "" && (!mechanikerPattern.MatchString(rep.Mechaniker) || len([]rune(rep.Mechaniker)) > 32) {
				add("Der Mechanikername %q in Reperatur %d ist ungueltig.", rep.Mechaniker, i)
			}
			if rep.Kosten.IsNegative() {
				add("Die Kosten in Reperatur %d duerfen nicht negativ sein.", i)
			}
			if rep.Datum != "" && !datumPattern.MatchString(rep.Datum) {
				add("Das Datum %q in Reperatur %d ist kein ISO-Datum.", rep.Datum, i)
			}
		}
	}

	if len(msgs) > 0 {
		return &domain.ValidationError{Messages: msgs}
	}
	return nil
}

// ToDomain converts the validated payload into the aggregate.
func (d *AutoDTO) ToDomain() *domain.Auto {
	art, _ := domain.ParseAutoArt(d.Art)
	a := &domain.Auto{
		Fahrgestellnummer:   d.Fahrgestellnummer,
		Marke:               d.Marke,
		Modell:              d.Modell,
		Baujahr:             d.Baujahr,
		Art:                 art,
		Preis:               d.Preis,
		Sicherheitsmerkmale: d.Sicherheitsmerkmale,
	}
	if d.Motor != nil {
		a.Motor = &domain.Motor{
			Name:     d.Motor.Name,
			PS:       d.Motor.PS,
			Zylinder: d.Motor.Zylinder,
			Drehzahl: d.Motor.Drehzahl,
		}
	}
	for _, rep := range d.Reperaturen {
		a.Reperaturen = append(a.Reperaturen, domain.Reperatur{
			Kosten:     rep.Kosten,
			Mechaniker: rep.Mechaniker,
			Datum:      rep.Datum,
		})
	}
	return a
}
