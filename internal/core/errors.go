package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUpstream        = errors.New("upstream service failed")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 100
)

// NormalizePage validates skip/limit query values. A zero limit means the default.
func NormalizePage(skip, limit int) (int, int, error) {
	if skip < 0 {
		return 0, 0, fmt.Errorf("%w: skip must be >= 0", ErrInvalidArgument)
	}
	if limit < 0 || limit > maxPageLimit {
		return 0, 0, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidArgument, maxPageLimit)
	}
	if limit == 0 {
		limit = defaultPageLimit
	}
	return skip, limit, nil
}

func upstream(what string, err error) error {
	if errors.Is(err, ErrUpstream) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstream, what, err)
}
