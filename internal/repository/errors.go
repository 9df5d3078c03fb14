// Package repository implements raw database/sql data access over MySQL.
// Sentinel errors defined here let the engine and handlers map failures
// to responses without string matching.
package repository

import "errors"

// ErrEventNotFound is returned when an event id does not resolve to a
// row. Handlers translate it into an HTTP 404.
var ErrEventNotFound = errors.New("event not found")
