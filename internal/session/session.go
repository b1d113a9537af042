// README: Authenticated operator session carried explicitly through context.
package session

import (
	"context"
	"time"

	"fleetclaim/internal/fault"
	"fleetclaim/internal/types"
)

// Session is obtained once per request from the identity collaborator and threaded
// through every coordination call.
type Session struct {
	OperatorID     types.ID
	OrganizationID types.ID
	Token          string
	ExpiresAt      time.Time
}

// Owner is the id used for organization-scoped lookups. Operators without a separate
// organization own their resources directly.
func (s Session) Owner() types.ID {
	return types.FirstID(s.OrganizationID, s.OperatorID)
}

// Validate requires a non-empty, unexpired identity. A zero ExpiresAt never expires.
func (s Session) Validate(now time.Time) error {
	if s.OperatorID == "" {
		return fault.AuthExpired("session", "no authenticated operator")
	}
	if !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt) {
		return fault.AuthExpired("session", "session expired")
	}
	return nil
}

type ctxKey struct{}

func With(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func From(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// Require returns the validated session stored in ctx.
func Require(ctx context.Context, now time.Time) (Session, error) {
	s, ok := From(ctx)
	if !ok {
		return Session{}, fault.AuthExpired("session", "no authenticated operator")
	}
	if err := s.Validate(now); err != nil {
		return Session{}, err
	}
	return s, nil
}
