package domain

import "errors"

// Expected business outcomes. These are returned as structured failures to the
// client, never treated as server faults. Anything else bubbling out of the
// engine is an internal error and is reported to the caller only as a generic
// failure.
var (
	// ErrNotFound means the presented key (or id) matches no license.
	ErrNotFound = errors.New("license not found")
	// ErrDeactivated means the license was switched off administratively.
	ErrDeactivated = errors.New("license deactivated")
	// ErrExpired means the license passed its expiry timestamp.
	ErrExpired = errors.New("license expired")
	// ErrDomainConflict means the license is bound to a different domain.
	// Every occurrence is a piracy event and is counted and audited.
	ErrDomainConflict = errors.New("license bound to another domain")
	// ErrDuplicateKey means a generated key collided on insert. The caller
	// (administrative flow) retries with a fresh key.
	ErrDuplicateKey = errors.New("license key already exists")
)
