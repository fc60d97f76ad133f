package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrMissingCredentials = errors.New("archive credentials missing")
	ErrMalformedSnapshot  = errors.New("malformed ledger snapshot")
)
