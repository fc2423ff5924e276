package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellarcore/stellarcore-operator/pkg/database/config"
)

// IdentityError is returned when a StellarCore cannot be addressed, for
// example because it has no namespace.
type IdentityError struct {
	Reason string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("invalid object identity: %s", e.Reason)
}

// IsIdentityError reports whether err wraps an IdentityError
func IsIdentityError(err error) bool {
	var ie *IdentityError
	return errors.As(err, &ie)
}

// ErrorKind classifies the outcome of a reconcile pass for metrics and
// status reporting.
type ErrorKind string

const (
	ErrorKindNone         ErrorKind = "none"
	ErrorKindIdentity     ErrorKind = "identity"
	ErrorKindValidation   ErrorKind = "validation"
	ErrorKindCanceled     ErrorKind = "canceled"
	ErrorKindCollaborator ErrorKind = "collaborator"
)

// Classify maps an error returned by Engine.Reconcile to its ErrorKind.
// Anything that is not produced by the engine itself is a collaborator error.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case IsIdentityError(err):
		return ErrorKindIdentity
	case config.IsValidationError(err):
		return ErrorKindValidation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindCanceled
	default:
		return ErrorKindCollaborator
	}
}

// Terminal reports whether the kind can only be fixed by editing the object
func (k ErrorKind) Terminal() bool {
	return k == ErrorKindIdentity || k == ErrorKindValidation
}
