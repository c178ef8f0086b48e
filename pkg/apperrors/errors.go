package apperrors

import "errors"

var (
	// ErrNotFound covers both a missing row and a row owned by another
	// user. The two cases are indistinguishable to callers so the API
	// cannot be used to probe for other users' data.
	ErrNotFound            = errors.New("not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrPinLimitExceeded    = errors.New("pin limit reached for this field")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)
