package domain

import (
	"fmt"
	"sort"
	"strings"
)

// NotFoundError reports that no Auto exists for an ID, or that a search
// returned no rows. Exactly one of ID or Criteria is set.
type NotFoundError struct {
	ID       uint
	Criteria map[string]string
}

func (e *NotFoundError) Error() string {
	if e.Criteria != nil && len(e.Criteria) == 0 {
		return "Keine Autos gefunden."
	}
	if len(e.Criteria) > 0 {
		keys := make([]string, 0, len(e.Criteria))
		for k := range e.Criteria {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, e.Criteria[k]))
		}
		return fmt.Sprintf("Keine Autos gefunden: %s", strings.Join(pairs, ", "))
	}
	return fmt.Sprintf("Es gibt kein Auto mit der ID %d.", e.ID)
}

// VersionInvalidError reports a malformed optimistic-lock token.
type VersionInvalidError struct {
	Token string
}

func (e *VersionInvalidError) Error() string {
	return fmt.Sprintf("Die Versionsnummer %s ist ungueltig.", e.Token)
}

// VersionOutdatedError reports a token older than the persisted state.
// Version carries the version supplied by the caller.
type VersionOutdatedError struct {
	Version int
}

func (e *VersionOutdatedError) Error() string {
	return fmt.Sprintf("Die Versionsnummer %d ist nicht aktuell.", e.Version)
}

// FahrgestellnummerExistsError reports a chassis-number uniqueness violation.
type FahrgestellnummerExistsError struct {
	Fahrgestellnummer string
}

func (e *FahrgestellnummerExistsError) Error() string {
	return fmt.Sprintf("Die Fahrgestellnummer %s existiert bereits.", e.Fahrgestellnummer)
}

// ValidationError reports a malformed input DTO. The transport layer produces
// it before the core services are invoked.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}
