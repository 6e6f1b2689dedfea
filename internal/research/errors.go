package research

import "errors"

var (
	// ErrNotFound indicates an unknown task or record.
	ErrNotFound = errors.New("analysis not found")
	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("not authorized for resource")
	// ErrUnknownCategory indicates an unrecognized category token.
	ErrUnknownCategory = errors.New("unknown analysis category")
	// ErrValidation indicates malformed request input.
	ErrValidation = errors.New("invalid input")
)
