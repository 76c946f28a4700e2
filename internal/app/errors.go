package app

import "errors"

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound means a structurally valid credential whose subject
	// no longer resolves to a user. Distinct from ErrInvalidCredentials so
	// the boundary can tell the client to drop the stale cookie.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists rejects duplicate registrations.
	ErrEmailExists = errors.New("email already exists")

	ErrTaskNotFound        = errors.New("task not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrDuplicateSubmission = errors.New("task already submitted, use edit instead")
)

// ValidationError marks user-correctable input problems.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation builds a ValidationError.
func Validation(message string) error {
	return &ValidationError{Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
