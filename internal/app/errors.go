package app

import "errors"

var (
	// ErrInvalidCredentials is shown to end users and must not enable
	// account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	// ErrUserDisabled should generally not be exposed to clients.
	ErrUserDisabled = errors.New("user disabled")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")
	ErrEmailRequired            = errors.New("email required")
	ErrCurrentPasswordRequired  = errors.New("current password required")
	ErrNewPasswordRequired      = errors.New("new password required")
	ErrRefreshTokenRequired     = errors.New("refresh token required")
	ErrInvalidRefreshToken      = errors.New("invalid refresh token")

	ErrSubjectNotFound  = errors.New("Subject not found")
	ErrSubjectExists    = errors.New("Subject already exists for this class")
	ErrBookNotFound     = errors.New("Book not found")
	ErrChapterNotFound  = errors.New("Chapter not found")
	ErrChapterExists    = errors.New("Chapter number already exists for this book")
	ErrUserNotFound     = errors.New("User not found")
	ErrValidation       = errors.New("validation failed")
	ErrQuestionRequired = errors.New("Question is required")
	ErrAIUnavailable    = errors.New("Failed to process your question")
)

// ValidationError carries a user-facing message for a 400 response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func validationErr(msg string) error {
	return &ValidationError{Message: msg}
}
