// README: Error taxonomy shared by the remote client, the coordination modules and the HTTP layer.
package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"fleetclaim/internal/types"
)

type Kind string

const (
	KindUnknown             Kind = ""
	KindAuthExpired         Kind = "auth_expired"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindValidation          Kind = "validation"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindInvalidTransition   Kind = "invalid_transition"
	KindNetwork             Kind = "network"
	KindTimeout             Kind = "timeout"
	KindServer              Kind = "server"
	KindRejected            Kind = "rejected"
)

// Error is the single error type crossing module boundaries. Only the fields relevant
// to Kind are populated.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string

	// Validation
	Fields map[string]string
	// InsufficientBalance
	Required  types.Money
	Available types.Money
	// InvalidTransition
	From string
	To   string
	// Unconfirmed marks a mutation the authority acknowledged with a 2xx whose reply could
	// not be read. It may have taken effect.
	Unconfirmed bool

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	switch e.Kind {
	case KindInsufficientBalance:
		fmt.Fprintf(&b, ": required %s, available %s", e.Required, e.Available)
	case KindInvalidTransition:
		if e.From != "" || e.To != "" {
			fmt.Fprintf(&b, ": %s -> %s", e.From, e.To)
		}
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s: %s", k, e.Fields[k])
		}
	}
	if e.Err != nil && e.Message == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &fault.Error{Kind: k}) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Status == 0
}

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

func Conflict(op, msg string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: msg}
}

func InsufficientBalance(op string, required, available types.Money) *Error {
	return &Error{Kind: KindInsufficientBalance, Op: op, Required: required, Available: available}
}

func InvalidTransition(op, from, to string) *Error {
	return &Error{Kind: KindInvalidTransition, Op: op, From: from, To: to}
}

// Unconfirmed wraps a failure to read the reply of a mutation that reached the authority.
func Unconfirmed(op string, err error) *Error {
	return &Error{
		Kind:        KindServer,
		Op:          op,
		Message:     "reply unreadable, the request may have taken effect",
		Unconfirmed: true,
		Err:         err,
	}
}

// IsUnconfirmed reports whether err's outcome at the authority is unknown.
func IsUnconfirmed(err error) bool {
	fe, ok := As(err)
	return ok && fe.Unconfirmed
}

func AuthExpired(op, msg string) *Error {
	return &Error{Kind: KindAuthExpired, Op: op, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func As(err error) (*Error, bool) {
	var fe *Error
	ok := errors.As(err, &fe)
	return fe, ok
}

// FromTransport classifies a failure that happened before any HTTP status was received.
func FromTransport(op string, err error) *Error {
	kind := KindNetwork
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &ne) && ne.Timeout():
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transient reports whether a failure is a transport-level one that a read may retry.
// Errors carrying an HTTP status are never transient.
func Transient(err error) bool {
	fe, ok := As(err)
	if !ok {
		return false
	}
	if fe.Status != 0 {
		return false
	}
	if errors.Is(fe.Err, context.Canceled) {
		return false
	}
	return fe.Kind == KindNetwork || fe.Kind == KindTimeout
}

// UserMessage renders an error for the operator UI.
func UserMessage(err error) string {
	fe, ok := As(err)
	if !ok {
		return "Something went wrong. Please try again."
	}
	switch fe.Kind {
	case KindConflict:
		return "This order was already taken. Refresh and retry."
	case KindAuthExpired:
		return "Your session has expired. Please sign in again."
	case KindForbidden:
		return "You are not allowed to perform this action."
	case KindNotFound:
		return "The requested record no longer exists."
	case KindInsufficientBalance:
		return fmt.Sprintf("Insufficient wallet balance: %s required, %s available.", fe.Required, fe.Available)
	case KindInvalidTransition:
		return fmt.Sprintf("Assignment cannot move from %s to %s.", fe.From, fe.To)
	case KindValidation:
		if fe.Message != "" {
			return fe.Message
		}
		return "Some fields are invalid."
	case KindNetwork, KindTimeout:
		return "Could not reach the dispatch service. Check your connection and retry."
	case KindServer:
		if fe.Unconfirmed {
			return "The dispatch service answered but its reply could not be read. Refresh to see whether the order is yours."
		}
		return "The dispatch service is having trouble. Please retry shortly."
	default:
		if fe.Message != "" {
			return fe.Message
		}
		return "Request failed."
	}
}
