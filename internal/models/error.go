package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login policy rejections
	ErrIPBlocked     = errors.New("ip address is blocked")
	ErrRateLimited   = errors.New("too many requests")
	ErrAccountLocked = errors.New("account is locked")
)

// Login failure codes surfaced to clients. Stable and machine-readable;
// human messages may change, these must not.
const (
	CodeIPBlocked          = "IP_BLOCKED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
)
