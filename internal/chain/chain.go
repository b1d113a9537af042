// README: Ordered first-success strategy runner used by lookup fallbacks.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrExhausted is returned when every step ran without error but none produced a result.
var ErrExhausted = errors.New("no step produced a result")

// Step is one strategy. Run returns ok=false without error to pass to the next step.
type Step[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, bool, error)
}

// Outcome reports which step won and which ones failed on the way.
type Outcome struct {
	Step   string
	Failed []string
}

// First runs steps in order and returns the first ok result. Failures of non-final steps
// are logged and skipped. When no step succeeds the joined step errors are returned, or
// ErrExhausted if every step merely came back empty.
func First[T any](ctx context.Context, log logrus.FieldLogger, op string, steps ...Step[T]) (T, Outcome, error) {
	var zero T
	var out Outcome
	var errs []error
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return zero, out, err
		}
		v, ok, err := s.Run(ctx)
		if err != nil {
			out.Failed = append(out.Failed, s.Name)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			if i < len(steps)-1 && log != nil {
				log.WithFields(logrus.Fields{
					"op":    op,
					"step":  s.Name,
					"error": err,
				}).Warn("fallback step failed, trying next")
			}
			continue
		}
		if ok {
			out.Step = s.Name
			return v, out, nil
		}
	}
	if len(errs) > 0 {
		return zero, out, fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	return zero, out, fmt.Errorf("%s: %w", op, ErrExhausted)
}
