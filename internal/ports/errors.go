package ports

import (
	"errors"
	"fmt"

	"liaison/internal/apperr"
)

// MapError converts a store error into the domain taxonomy. Domain errors
// raised inside a transaction pass through unchanged.
func MapError(op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *apperr.ValidationError
		ae *apperr.AuthorizationError
		iv *apperr.InvariantViolation
		nf *apperr.NotFoundError
		df *apperr.DependencyFailure
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ae), errors.As(err, &iv), errors.As(err, &nf), errors.As(err, &df):
		return err
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(entity, id)
	case errors.Is(err, ErrConflict):
		return apperr.InvariantWrap(op, "concurrent modification of "+entity+" "+id, err)
	case errors.Is(err, ErrRejected):
		return apperr.Validation(entity, err.Error())
	}
	return apperr.Dependency("store", fmt.Errorf("%s: %w", op, err))
}
