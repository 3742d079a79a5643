package validate

import "errors"

// ErrInvalid marks an artifact that failed validation.
var ErrInvalid = errors.New("validation failed")
