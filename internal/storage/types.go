package storage

import "errors"

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates a vector whose length does not match
	// the store's fixed embedding dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// DefaultSearchLimit is used when a caller passes a non-positive limit.
const DefaultSearchLimit = 5

// NormalizeLimit clamps a search/range limit to a sane value.
func NormalizeLimit(limit, max int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}
