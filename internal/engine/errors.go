// Package engine orchestrates attendance mutations: join, leave, waitlist
// promotion and the president transfer. It owns the transaction and
// locking discipline described in the concurrency notes; handlers stay
// thin and translate the error taxonomy below into HTTP responses.
package engine

import (
	"errors"
	"net/http"

	"github.com/go-sql-driver/mysql"

	"github.com/ascentclub/server/internal/rules"
)

// ErrUserNotFound is returned when a user id does not resolve to a row.
var ErrUserNotFound = errors.New("user not found")

// ErrConcurrencyConflict wraps lock contention on the event-scoped
// transaction. It reflects a transient race, not a business violation,
// and is the one error class the engine retries locally.
var ErrConcurrencyConflict = errors.New("concurrent attendance update")

// ReasonNotAttending is the denial reason for leaving an event the user
// is not attending. It lives here rather than in rules because leave has
// no pure rule function; the engine checks the episode directly.
const ReasonNotAttending = "not attending"

// ReasonEventNotFull is the denial reason for queueing on an event that
// still has open capacity. The waitlist only exists for full events;
// anyone with a free slot available should join directly.
const ReasonEventNotFull = "event is not full"

// Denial is a policy rejection: a rule failed, the request was valid, and
// retrying without a state change will fail again. Code is an HTTP-like
// status and Reason the specific human readable cause.
type Denial struct {
	Code   int
	Reason string
}

func (d *Denial) Error() string { return d.Reason }

// denialOf converts a failed rules decision into a Denial.
func denialOf(dec rules.Decision) *Denial {
	return &Denial{Code: dec.Code, Reason: dec.Reason}
}

// AsDenial unwraps a Denial from an error chain, if present.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// notAttending is the denial returned when leave finds no active episode.
func notAttending() *Denial {
	return &Denial{Code: http.StatusBadRequest, Reason: ReasonNotAttending}
}

// isLockConflict reports whether err is a MySQL deadlock (1213) or lock
// wait timeout (1205), the two signatures of contention on the event row.
func isLockConflict(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1205 || myErr.Number == 1213
	}
	return false
}
