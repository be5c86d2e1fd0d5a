// internal/apperrors/errors.go
package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoFields           = errors.New("no recognized fields provided")
	ErrOCRNotCompleted    = errors.New("document OCR has not completed")
	ErrOCRNotPending      = errors.New("document OCR already processed")
	ErrUnreachableFile    = errors.New("document file is not reachable")
)
