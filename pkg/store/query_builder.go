package store

import (
	"fmt"
	"sort"
	"strconv"
)

// Criteria is a sparse bag of search keys. Recognized keys get dedicated
// predicates; every other key is matched by column equality.
type Criteria map[string]string

// Pageable describes the requested result page. A Size of 0 disables
// pagination and returns all matches.
type Pageable struct {
	Size   int
	Number int
}

// Defaults applied when the caller omits pagination.
const (
	DefaultPageSize   = 5
	DefaultPageNumber = 0
)

// NewPageable normalizes raw size/number values to the configured defaults.
// Size < 0 and Number < 0 fall back to the defaults; Size == 0 is kept and
// means "unpaginated".
func NewPageable(size, number int) Pageable {
	if size < 0 {
		size = DefaultPageSize
	}
	if number < 0 {
		number = DefaultPageNumber
	}
	return Pageable{Size: size, Number: number}
}

// Predicate is one typed WHERE condition with its bind arguments.
type Predicate struct {
	Condition string
	Args      []any
}

// keys with dedicated predicate handling
const (
	critMotor   = "motor"
	critBaujahr = "baujahr"
	critPreis   = "preis"
)

// sicherheitsmerkmalFlags lists the boolean criteria in their fixed
// application order together with the canonical code stored in the column.
var sicherheitsmerkmalFlags = []string{"esb", "abs", "airbag", "parkassistent"}

// equalityColumns lists the autos columns the remaining criteria keys may
// match by exact equality. Keys outside this set are dropped, which also
// keeps hostile input out of the generated SQL. MemoryStore matches against
// the same set.
var equalityColumns = map[string]bool{
	"fahrgestellnummer": true,
	"marke":             true,
	"modell":            true,
	"art":               true,
	"version":           true,
}

// BuildPredicates translates a criteria bag into the ordered conjunction of
// predicates for the Auto search: motor name first, then baujahr, preis, the
// four safety flags and finally all remaining keys as column equality.
// Criteria whose value does not parse (baujahr, preis) and keys that name no
// known column are skipped.
func BuildPredicates(c Criteria) []Predicate {
	preds := make([]Predicate, 0, len(c))
	rest := make(map[string]string, len(c))
	for k, v := range c {
		rest[k] = v
	}

	if name, ok := rest[critMotor]; ok {
		preds = append(preds, Predicate{
			Condition: "motors.name ILIKE ?",
			Args:      []any{"%" + name + "%"},
		})
		delete(rest, critMotor)
	}

	if raw, ok := rest[critBaujahr]; ok {
		if baujahr, err := strconv.Atoi(raw); err == nil {
			preds = append(preds, Predicate{
				Condition: "autos.baujahr >= ?",
				Args:      []any{baujahr},
			})
		}
		delete(rest, critBaujahr)
	}

	if raw, ok := rest[critPreis]; ok {
		if preis, err := strconv.ParseFloat(raw, 64); err == nil {
			preds = append(preds, Predicate{
				Condition: "autos.preis <= ?",
				Args:      []any{preis},
			})
		}
		delete(rest, critPreis)
	}

	for _, flag := range sicherheitsmerkmalFlags {
		if rest[flag] == "true" {
			preds = append(preds, merkmalPredicate(flag))
		}
		delete(rest, flag)
	}

	// Go maps are unordered; sorting the remaining keys keeps the generated
	// query deterministic.
	keys := make([]string, 0, len(rest))
	for k := range rest {
		if equalityColumns[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		preds = append(preds, Predicate{
			Condition: fmt.Sprintf("autos.%s = ?", k),
			Args:      []any{rest[k]},
		})
	}
	return preds
}

func merkmalPredicate(flag string) Predicate {
	code := toUpperASCII(flag)
	return Predicate{
		Condition: "autos.sicherheitsmerkmale LIKE ?",
		Args:      []any{"%" + code + "%"},
	}
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
