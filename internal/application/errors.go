// Package application contains use-case orchestration services.
package application

import "errors"

// ErrValidation marks caller input rejected before any side effect. Services
// wrap it with detail, e.g. fmt.Errorf("%w: at least one recipient", ErrValidation).
var ErrValidation = errors.New("validation failed")
