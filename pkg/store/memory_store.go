package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"autohaus/pkg/domain"
)

// MemoryStore keeps the aggregate in-process. It mirrors the semantics of
// GormStore (version arithmetic, cascading delete, search predicates) and
// backs the service and transport tests.
type MemoryStore struct {
	mu          sync.RWMutex
	autos       map[uint]*domain.Auto
	files       map[uint]*domain.AutoFile // key: auto ID
	nextID      uint
	nextChildID uint
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		autos: make(map[uint]*domain.Auto),
		files: make(map[uint]*domain.AutoFile),
	}
}

// FindAutoByID returns a copy of the stored aggregate. Reperaturen are
// attached only on request, matching the SQL join behavior.
func (m *MemoryStore) FindAutoByID(_ context.Context, id uint, mitReperaturen bool) (*domain.Auto, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.autos[id]
	if !ok || a.Motor == nil {
		return nil, false, nil
	}
	c := copyAuto(a)
	if !mitReperaturen {
		c.Reperaturen = nil
	}
	return c, true, nil
}

// SearchAutos evaluates the criteria bag with the same AND semantics as the
// SQL predicates and applies pagination after ordering by ID.
func (m *MemoryStore) SearchAutos(_ context.Context, c Criteria, p Pageable) ([]domain.Auto, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]domain.Auto, 0, len(m.autos))
	for _, a := range m.autos {
		if a.Motor == nil {
			continue
		}
		if matchesCriteria(a, c) {
			cp := copyAuto(a)
			cp.Reperaturen = nil
			matched = append(matched, *cp)
		}
	}
	sortAutosByID(matched)
	total := int64(len(matched))

	if p.Size > 0 {
		from := p.Number * p.Size
		if from >= len(matched) {
			return nil, total, nil
		}
		to := from + p.Size
		if to > len(matched) {
			to = len(matched)
		}
		matched = matched[from:to]
	}
	return matched, total, nil
}

// FahrgestellnummerExists checks for an exact chassis-number match.
func (m *MemoryStore) FahrgestellnummerExists(_ context.Context, fahrgestellnummer string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.autos {
		if a.Fahrgestellnummer == fahrgestellnummer {
			return true, nil
		}
	}
	return false, nil
}

// CreateAuto stores the aggregate and wires the back-references.
func (m *MemoryStore) CreateAuto(_ context.Context, a *domain.Auto) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c := copyAuto(a)
	c.ID = m.nextID
	if c.Motor != nil {
		m.nextChildID++
		c.Motor.ID = m.nextChildID
		c.Motor.AutoID = c.ID
	}
	for i := range c.Reperaturen {
		m.nextChildID++
		c.Reperaturen[i].ID = m.nextChildID
		c.Reperaturen[i].AutoID = c.ID
	}
	m.autos[c.ID] = c
	return c.ID, nil
}

// UpdateAuto applies the scalar fields if the stored version still equals
// the version the caller read, and increments the version by exactly 1.
func (m *MemoryStore) UpdateAuto(_ context.Context, a *domain.Auto) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.autos[a.ID]
	if !ok || cur.Version != a.Version {
		return 0, ErrVersionConflict
	}
	cur.Marke = a.Marke
	cur.Modell = a.Modell
	cur.Baujahr = a.Baujahr
	cur.Art = a.Art
	cur.Preis = a.Preis
	cur.Sicherheitsmerkmale = append([]string(nil), a.Sicherheitsmerkmale...)
	cur.Aktualisiert = a.Aktualisiert
	cur.Version++
	return cur.Version, nil
}

// DeleteAuto removes the aggregate and its attachment all-or-nothing.
func (m *MemoryStore) DeleteAuto(_ context.Context, a *domain.Auto) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.autos[a.ID]; !ok {
		return false, nil
	}
	delete(m.autos, a.ID)
	delete(m.files, a.ID)
	return true, nil
}

// ReplaceFile swaps the attachment of an Auto.
func (m *MemoryStore) ReplaceFile(_ context.Context, autoID uint, file *domain.AutoFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextChildID++
	file.ID = m.nextChildID
	file.AutoID = autoID
	c := *file
	c.Data = append([]byte(nil), file.Data...)
	m.files[autoID] = &c
	return nil
}

// FindFile returns the attachment of an Auto, if any.
func (m *MemoryStore) FindFile(_ context.Context, autoID uint) (*domain.AutoFile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[autoID]
	if !ok {
		return nil, false, nil
	}
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	return &c, true, nil
}

func matchesCriteria(a *domain.Auto, c Criteria) bool {
	merkmale := strings.Join(a.Sicherheitsmerkmale, ",")
	for k, v := range c {
		switch k {
		case critMotor:
			if !strings.Contains(strings.ToLower(a.Motor.Name), strings.ToLower(v)) {
				return false
			}
		case critBaujahr:
			if baujahr, err := strconv.Atoi(v); err == nil && a.Baujahr < baujahr {
				return false
			}
		case critPreis:
			if preis, err := decimal.NewFromString(v); err == nil && a.Preis.GreaterThan(preis) {
				return false
			}
		case "esb", "abs", "airbag", "parkassistent":
			if v == "true" && !strings.Contains(merkmale, toUpperASCII(k)) {
				return false
			}
		default:
			// same contract as BuildPredicates: equality for known columns,
			// unknown keys are dropped
			val, ok := equalityColumn(a, k)
			if ok && val != v {
				return false
			}
		}
	}
	return true
}

// equalityColumn resolves the column value for an exact-match criteria key,
// mirroring the equalityColumns set of BuildPredicates.
func equalityColumn(a *domain.Auto, k string) (string, bool) {
	switch k {
	case "fahrgestellnummer":
		return a.Fahrgestellnummer, true
	case "marke":
		return a.Marke, true
	case "modell":
		return a.Modell, true
	case "art":
		return string(a.Art), true
	case "version":
		return strconv.Itoa(a.Version), true
	}
	return "", false
}

func sortAutosByID(autos []domain.Auto) {
	sort.Slice(autos, func(i, j int) bool { return autos[i].ID < autos[j].ID })
}

func copyAuto(a *domain.Auto) *domain.Auto {
	c := *a
	c.Sicherheitsmerkmale = append([]string(nil), a.Sicherheitsmerkmale...)
	if a.Motor != nil {
		motor := *a.Motor
		c.Motor = &motor
	}
	c.Reperaturen = append([]domain.Reperatur(nil), a.Reperaturen...)
	return &c
}
