package config

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError reports a present configuration block with a required
// field left empty. It persists until the StellarCore object is edited.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid database spec: %s: %s", e.Field, e.Reason)
}

// IsValidationError returns true if err, or any error it wraps, is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
