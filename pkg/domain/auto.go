package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AutoArt is the fixed category of a vehicle.
type AutoArt string

const (
	ArtKombi     AutoArt = "KOMBI"
	ArtLimousine AutoArt = "LIMOUSINE"
	ArtSUV       AutoArt = "SUV"
	ArtCabrio    AutoArt = "CABRIO"
	ArtCoupe     AutoArt = "COUPE"
)

// ParseAutoArt maps a string onto the category enum.
func ParseAutoArt(s string) (AutoArt, bool) {
	switch AutoArt(strings.ToUpper(strings.TrimSpace(s))) {
	case ArtKombi:
		return ArtKombi, true
	case ArtLimousine:
		return ArtLimousine, true
	case ArtSUV:
		return ArtSUV, true
	case ArtCabrio:
		return ArtCabrio, true
	case ArtCoupe:
		return ArtCoupe, true
	default:
		return "", false
	}
}

// Limits for Motor fields.
const (
	MaxPS       = 1000
	MaxZylinder = 24
)

// Auto is the root aggregate: a vehicle owning exactly one Motor,
// zero or more Reperaturen and at most one AutoFile.
type Auto struct {
	ID                  uint            `json:"id"`
	Version             int             `json:"version"`
	Fahrgestellnummer   string          `json:"fahrgestellnummer"`
	Marke               string          `json:"marke"`
	Modell              string          `json:"modell"`
	Baujahr             int             `json:"baujahr"`
	Art                 AutoArt         `json:"art"`
	Preis               decimal.Decimal `json:"preis"`
	Sicherheitsmerkmale []string        `json:"sicherheitsmerkmale,omitempty"`
	Motor               *Motor          `json:"motor,omitempty"`
	Reperaturen         []Reperatur     `json:"reperaturen,omitempty"`
	Erzeugt             time.Time       `json:"erzeugt"`
	Aktualisiert        time.Time       `json:"aktualisiert"`
}

// Motor belongs to exactly one Auto and cannot outlive it.
type Motor struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	PS       int             `json:"ps"`
	Zylinder int             `json:"zylinder"`
	Drehzahl decimal.Decimal `json:"drehzahl"`
	AutoID   uint            `json:"-"`
}

// Reperatur is a single repair record of an Auto.
type Reperatur struct {
	ID         uint            `json:"id"`
	Kosten     decimal.Decimal `json:"kosten"`
	Mechaniker string          `json:"mechaniker"`
	Datum      string          `json:"datum"` // ISO calendar date (YYYY-MM-DD)
	AutoID     uint            `json:"-"`
}

// AutoFile is the optional binary attachment of an Auto.
type AutoFile struct {
	ID       uint   `json:"id"`
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
	Data     []byte `json:"-"`
	AutoID   uint   `json:"-"`
}

// Page wraps one page of search results together with the total match count.
type Page struct {
	Content []Auto `json:"content"`
	Total   int64  `json:"total"`
	Size    int    `json:"size"`
	Number  int    `json:"number"`
}
