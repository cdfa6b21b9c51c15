package common

import "errors"

// Error kinds shared by every analysis component. Call sites wrap these with
// context using fmt.Errorf("%w: ..."), so callers should match with errors.Is.
var (
	// ErrEmptyInput is returned when an array or stream holds no elements
	// but at least one is required.
	ErrEmptyInput = errors.New("empty input")

	// ErrDomain is returned when a value lies outside the domain of a
	// logarithmic or ratio computation (non-positive, NaN or infinite frequency).
	ErrDomain = errors.New("value outside function domain")

	// ErrInvalidParameter is returned for out-of-range configuration such as
	// a non-positive window capacity or a pass score outside [1, capacity].
	ErrInvalidParameter = errors.New("invalid parameter")
)
