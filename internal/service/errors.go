package service

import (
	"errors"
	"fmt"

	"vehicle_parking/internal/repository"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNoVacancy    = errors.New("no vacant slot available")
	ErrUnauthorized = errors.New("not allowed to access this resource")
	ErrInvalidState = errors.New("invalid state transition")
	ErrValidation   = errors.New("validation failed")
)

var ErrInvalidCredentials = errors.New("invalid email or password")
var ErrUserAlreadyExists = errors.New("email is already registered")
var ErrTokenInvalid = errors.New("token is invalid or expired")

// notFound translates repository.ErrNotFound into ErrNotFound naming what was
// missing; other errors are wrapped with op.
func notFound(err error, op, what string, id int) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return fmt.Errorf("%s: %w", op, err)
}
