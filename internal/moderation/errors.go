package moderation

import "errors"

var (
	// ErrPermissionDenied is returned by actuators lacking rights to delete or restrict.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTargetNotFound is returned when the user is no longer a member of the guild.
	ErrTargetNotFound = errors.New("target not found")
	// ErrGateway marks transient chat gateway failures.
	ErrGateway = errors.New("gateway error")
	// ErrStorageUnavailable wraps every ledger storage failure.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrEmptyTerm    = errors.New("empty term")
	ErrTermExists   = errors.New("term is already banned")
	ErrTermNotFound = errors.New("term is not banned")
)
