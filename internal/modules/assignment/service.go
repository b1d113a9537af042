package assignment

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"fleetclaim/internal/fault"
	"fleetclaim/internal/observability"
	"fleetclaim/internal/types"
)

// Remote is the assignment surface of the dispatch authority.
type Remote interface {
	Assignment(ctx context.Context, id types.ID) (*Assignment, error)
	AssignmentsByOrder(ctx context.Context, orderID types.ID) ([]Assignment, error)
	AssignmentsByOwner(ctx context.Context, ownerID types.ID) ([]Assignment, error)
	UpdateStatus(ctx context.Context, id types.ID, to Status) (*Assignment, error)
	BindResources(ctx context.Context, id, driverID, carID types.ID) (*Assignment, error)
}

type Service struct {
	remote Remote
	log    logrus.FieldLogger
}

func NewService(remote Remote, log logrus.FieldLogger) *Service {
	return &Service{remote: remote, log: log}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Assignment, error) {
	return s.remote.Assignment(ctx, id)
}

func (s *Service) ByOrder(ctx context.Context, orderID types.ID) ([]Assignment, error) {
	return s.remote.AssignmentsByOrder(ctx, orderID)
}

func (s *Service) ByOwner(ctx context.Context, ownerID types.ID) ([]Assignment, error) {
	return s.remote.AssignmentsByOwner(ctx, ownerID)
}

// Transition moves an assignment to the target status. The current state is read first
// so that a transition outside the table is never sent.
func (s *Service) Transition(ctx context.Context, id types.ID, to Status) (*Assignment, error) {
	const op = "transition assignment"
	a, err := s.transition(ctx, op, id, to)
	observability.TransitionsTotal.WithLabelValues(string(to), observability.Outcome(string(fault.KindOf(err)), err)).Inc()
	return a, err
}

func (s *Service) transition(ctx context.Context, op string, id types.ID, to Status) (*Assignment, error) {
	if !to.Valid() {
		return nil, &fault.Error{
			Kind:    fault.KindValidation,
			Op:      op,
			Message: fmt.Sprintf("unknown assignment status %q", to),
			Fields:  map[string]string{"assignment_status": "not a valid choice"},
		}
	}
	cur, err := s.remote.Assignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur.Status, to) {
		return nil, fault.InvalidTransition(op, string(cur.Status), string(to))
	}
	next, err := s.remote.UpdateStatus(ctx, id, to)
	if err != nil {
		return nil, reclassify(op, err, cur.Status, to)
	}
	s.log.WithFields(logrus.Fields{
		"op":            op,
		"assignment_id": id,
		"from":          cur.Status,
		"to":            next.Status,
	}).Info("assignment status changed")
	return next, nil
}

// Bind attaches a driver and a car to a PENDING assignment.
func (s *Service) Bind(ctx context.Context, id, driverID, carID types.ID) (*Assignment, error) {
	const op = "bind resources"
	a, err := s.bind(ctx, op, id, driverID, carID)
	observability.BindsTotal.WithLabelValues(observability.Outcome(string(fault.KindOf(err)), err)).Inc()
	return a, err
}

func (s *Service) bind(ctx context.Context, op string, id, driverID, carID types.ID) (*Assignment, error) {
	if driverID == "" || carID == "" {
		fields := map[string]string{}
		if driverID == "" {
			fields["driver_id"] = "required"
		}
		if carID == "" {
			fields["car_id"] = "required"
		}
		return nil, &fault.Error{Kind: fault.KindValidation, Op: op, Message: "driver and car are required", Fields: fields}
	}
	cur, err := s.remote.Assignment(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case cur.Status == StatusAssigned && cur.Bound():
		return nil, fault.Conflict(op, fmt.Sprintf("assignment %s already has driver %s and car %s", id, cur.DriverID, cur.CarID))
	case cur.Status != StatusPending:
		return nil, fault.InvalidTransition(op, string(cur.Status), string(StatusAssigned))
	}
	next, err := s.remote.BindResources(ctx, id, driverID, carID)
	if err != nil {
		return nil, reclassify(op, err, cur.Status, StatusAssigned)
	}
	s.log.WithFields(logrus.Fields{
		"op":            op,
		"assignment_id": id,
		"driver_id":     driverID,
		"car_id":        carID,
	}).Info("resources bound")
	return next, nil
}

// reclassify fills in From and To on a transition rejection since the current state is
// known. Other rejections are returned unchanged.
func reclassify(op string, err error, from, to Status) error {
	fe, ok := fault.As(err)
	if !ok {
		return err
	}
	if fe.Kind == fault.KindInvalidTransition {
		return &fault.Error{
			Kind:    fault.KindInvalidTransition,
			Op:      op,
			Status:  fe.Status,
			Message: fe.Message,
			From:    string(from),
			To:      string(to),
			Err:     err,
		}
	}
	return err
}
