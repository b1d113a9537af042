// README: Fallback selector picks a driver or car for the manual acceptance path when the
// caller named none. Steps run in order and the first confirmed candidate wins.
package fallback

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"fleetclaim/internal/chain"
	"fleetclaim/internal/fault"
	"fleetclaim/internal/modules/directory"
	"fleetclaim/internal/observability"
	"fleetclaim/internal/session"
	"fleetclaim/internal/types"
)

const (
	SourceAvailable    = "available"
	SourceOrganization = "organization"
	SourcePlaceholder  = "placeholder"
)

type Directory interface {
	ListAvailableDrivers(ctx context.Context) ([]directory.Driver, error)
	ListAvailableCars(ctx context.Context) ([]directory.Car, error)
	OrganizationDrivers(ctx context.Context, ownerID types.ID) ([]directory.Driver, error)
	OrganizationCars(ctx context.Context, ownerID types.ID) ([]directory.Car, error)
	DriverAvailable(ctx context.Context, driverID types.ID) (bool, error)
	CarAvailable(ctx context.Context, carID types.ID) (bool, error)
}

// Selection is the chosen resource id and the step that produced it.
type Selection struct {
	ID       types.ID `json:"id"`
	Source   string   `json:"source"`
	Degraded bool     `json:"degraded,omitempty"`
}

type Config struct {
	// Placeholder enables the last step that falls back to the operator's own id.
	Placeholder bool
}

type Selector struct {
	dir Directory
	cfg Config
	log logrus.FieldLogger
}

func NewSelector(dir Directory, cfg Config, log logrus.FieldLogger) *Selector {
	return &Selector{dir: dir, cfg: cfg, log: log}
}

type candidate struct {
	id     types.ID
	owner  types.ID
	online bool
}

// resource describes how one resource kind is listed and re-checked.
type resource struct {
	name         string
	available    func(ctx context.Context) ([]candidate, error)
	organization func(ctx context.Context, owner types.ID) ([]candidate, error)
	recheck      func(ctx context.Context, id types.ID) (bool, error)
}

func (s *Selector) SelectDriver(ctx context.Context, sess session.Session) (Selection, error) {
	return s.selectFor(ctx, sess, resource{
		name: "driver",
		available: func(ctx context.Context) ([]candidate, error) {
			ds, err := s.dir.ListAvailableDrivers(ctx)
			return driverCandidates(ds), err
		},
		organization: func(ctx context.Context, owner types.ID) ([]candidate, error) {
			ds, err := s.dir.OrganizationDrivers(ctx, owner)
			return driverCandidates(ds), err
		},
		recheck: s.dir.DriverAvailable,
	})
}

func (s *Selector) SelectCar(ctx context.Context, sess session.Session) (Selection, error) {
	return s.selectFor(ctx, sess, resource{
		name: "car",
		available: func(ctx context.Context) ([]candidate, error) {
			cs, err := s.dir.ListAvailableCars(ctx)
			return carCandidates(cs), err
		},
		organization: func(ctx context.Context, owner types.ID) ([]candidate, error) {
			cs, err := s.dir.OrganizationCars(ctx, owner)
			return carCandidates(cs), err
		},
		recheck: s.dir.CarAvailable,
	})
}

func (s *Selector) selectFor(ctx context.Context, sess session.Session, r resource) (Selection, error) {
	op := "select " + r.name
	rejected := map[types.ID]bool{}

	steps := []chain.Step[Selection]{
		{Name: SourceAvailable, Run: func(ctx context.Context) (Selection, bool, error) {
			list, err := r.available(ctx)
			if err != nil {
				return Selection{}, false, err
			}
			pick, ok := preferOwned(list, sess)
			if !ok {
				return Selection{}, false, nil
			}
			if !s.confirm(ctx, op, r, pick.id) {
				rejected[pick.id] = true
				return Selection{}, false, nil
			}
			return Selection{ID: pick.id, Source: SourceAvailable}, true, nil
		}},
		{Name: SourceOrganization, Run: func(ctx context.Context) (Selection, bool, error) {
			list, err := r.organization(ctx, sess.Owner())
			if err != nil {
				return Selection{}, false, err
			}
			for _, c := range onlineFirst(list) {
				if rejected[c.id] {
					continue
				}
				if s.confirm(ctx, op, r, c.id) {
					return Selection{ID: c.id, Source: SourceOrganization}, true, nil
				}
				rejected[c.id] = true
			}
			return Selection{}, false, nil
		}},
	}
	if s.cfg.Placeholder {
		steps = append(steps, chain.Step[Selection]{Name: SourcePlaceholder, Run: func(ctx context.Context) (Selection, bool, error) {
			if sess.OperatorID == "" {
				return Selection{}, false, nil
			}
			s.log.WithFields(logrus.Fields{
				"op":          op,
				"operator_id": sess.OperatorID,
				"step":        SourcePlaceholder,
			}).Warn("no candidate found, using operator id as placeholder")
			return Selection{ID: sess.OperatorID, Source: SourcePlaceholder, Degraded: true}, true, nil
		}})
	}

	sel, out, err := chain.First(ctx, s.log, op, steps...)
	if err != nil {
		if errors.Is(err, chain.ErrExhausted) {
			return Selection{}, fault.New(fault.KindNotFound, op, "no available "+r.name)
		}
		return Selection{}, err
	}
	observability.FallbackStepsTotal.WithLabelValues(r.name, out.Step).Inc()
	return sel, nil
}

// confirm re-checks availability right before use. A failed check passes the candidate
// since the bind call enforces availability anyway.
func (s *Selector) confirm(ctx context.Context, op string, r resource, id types.ID) bool {
	ok, err := r.recheck(ctx, id)
	if err != nil {
		observability.DegradedChecksTotal.WithLabelValues(r.name + "_recheck").Inc()
		s.log.WithFields(logrus.Fields{"op": op, r.name + "_id": id, "error": err}).Warn("availability re-check failed, keeping candidate")
		return true
	}
	if !ok {
		s.log.WithFields(logrus.Fields{"op": op, r.name + "_id": id}).Info("candidate no longer available")
	}
	return ok
}

func preferOwned(list []candidate, sess session.Session) (candidate, bool) {
	if len(list) == 0 {
		return candidate{}, false
	}
	for _, c := range list {
		if c.owner != "" && (c.owner == sess.Owner() || c.owner == sess.OperatorID) {
			return c, true
		}
	}
	return list[0], true
}

// onlineFirst keeps listing order within each group.
func onlineFirst(list []candidate) []candidate {
	out := make([]candidate, 0, len(list))
	for _, c := range list {
		if c.online {
			out = append(out, c)
		}
	}
	for _, c := range list {
		if !c.online {
			out = append(out, c)
		}
	}
	return out
}

func driverCandidates(ds []directory.Driver) []candidate {
	out := make([]candidate, 0, len(ds))
	for _, d := range ds {
		if d.ID == "" {
			continue
		}
		out = append(out, candidate{id: d.ID, owner: d.OwnerID, online: d.Status == directory.DriverOnline})
	}
	return out
}

func carCandidates(cs []directory.Car) []candidate {
	out := make([]candidate, 0, len(cs))
	for _, c := range cs {
		if c.ID == "" {
			continue
		}
		out = append(out, candidate{id: c.ID, owner: c.OwnerID, online: c.Status == directory.CarOnline})
	}
	return out
}
