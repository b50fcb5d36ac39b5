// Package errs holds the sentinel errors shared by the store, the real-time
// core and the HTTP layer. Callers wrap them with %w and classify with errors.Is.
package errs

import "errors"

var (
	// ErrUnauthenticated means a credential was missing, malformed, expired
	// or named an unknown identity.
	ErrUnauthenticated = errors.New("authentication failed")

	// ErrAccessDenied means the identity is not a participant of the
	// referenced conversation.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound means the referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation means the payload was malformed.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence means the durable store could not complete the operation.
	ErrPersistence = errors.New("persistence failed")

	// ErrUpload means the object storage collaborator rejected a file.
	ErrUpload = errors.New("upload failed")
)
