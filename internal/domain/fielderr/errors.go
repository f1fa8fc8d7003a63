// Package fielderr defines the error taxonomy shared across services so the
// HTTP layer can map failures to status codes with errors.Is.
package fielderr

import "errors"

// ErrNotFound indicates a missing domain record (no active feed program,
// unknown conversation, unknown farmer). Mapped to 404, never retried.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates rejected caller input such as a non-positive
// animal quantity. Mapped to 400, never retried.
var ErrValidation = errors.New("validation failed")

// ErrExtraction indicates the language-model collaborator returned output
// that could not be parsed against the expected schema. Surfaced distinctly
// so callers can re-prompt; form state is left untouched.
var ErrExtraction = errors.New("extraction failed")
