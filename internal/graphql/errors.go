package graphql

import (
	"errors"

	"autohaus/pkg/domain"
)

// inputError surfaces a domain error to GraphQL clients with the
// conventional BAD_USER_INPUT extension code.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": "BAD_USER_INPUT"}
}

// forbiddenError rejects a caller lacking the required role.
type forbiddenError struct {
	msg string
}

func (e *forbiddenError) Error() string { return e.msg }

func (e *forbiddenError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": "FORBIDDEN"}
}

// translate maps the typed errors of the core onto GraphQL errors carrying
// extension codes. Unknown errors pass through untouched.
func translate(err error) error {
	var (
		notFoundErr *domain.NotFoundError
		invalidErr  *domain.VersionInvalidError
		outdatedErr *domain.VersionOutdatedError
		existsErr   *domain.FahrgestellnummerExistsError
		validErr    *domain.ValidationError
	)
	switch {
	case errors.As(err, &notFoundErr),
		errors.As(err, &invalidErr),
		errors.As(err, &outdatedErr),
		errors.As(err, &existsErr),
		errors.As(err, &validErr):
		return &inputError{msg: err.Error()}
	default:
		return err
	}
}
