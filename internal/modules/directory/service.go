// README: Resource directory looks up claimable drivers and cars through ordered lookup paths.
package directory

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"fleetclaim/internal/chain"
	"fleetclaim/internal/observability"
	"fleetclaim/internal/types"
)

// Source is the slice of the remote authority the directory reads from.
type Source interface {
	AvailableDrivers(ctx context.Context) ([]json.RawMessage, error)
	UsersAvailableDrivers(ctx context.Context) ([]json.RawMessage, error)
	AvailableCars(ctx context.Context) ([]json.RawMessage, error)
	UsersAvailableCars(ctx context.Context) ([]json.RawMessage, error)
	OrganizationDrivers(ctx context.Context, ownerID types.ID) ([]json.RawMessage, error)
	OrganizationCars(ctx context.Context, ownerID types.ID) ([]json.RawMessage, error)
	DriverAvailability(ctx context.Context, driverID types.ID) (bool, error)
	CarAvailability(ctx context.Context, carID types.ID) (bool, error)
}

type Service struct {
	src Source
	log logrus.FieldLogger
}

func NewService(src Source, log logrus.FieldLogger) *Service {
	return &Service{src: src, log: log}
}

type fetchFunc func(ctx context.Context) ([]json.RawMessage, error)

// lookup wraps a fetch as a chain step. A successful fetch always wins, even when empty.
func lookup(name string, fetch fetchFunc) chain.Step[[]json.RawMessage] {
	return chain.Step[[]json.RawMessage]{
		Name: name,
		Run: func(ctx context.Context) ([]json.RawMessage, bool, error) {
			raws, err := fetch(ctx)
			if err != nil {
				return nil, false, err
			}
			return raws, true, nil
		},
	}
}

// ListAvailableDrivers returns claimable drivers. The secondary path is only consulted
// when the primary call fails; an empty list is a valid answer.
func (s *Service) ListAvailableDrivers(ctx context.Context) ([]Driver, error) {
	raws, out, err := chain.First(ctx, s.log, "list available drivers",
		lookup("drivers/available", s.src.AvailableDrivers),
		lookup("users/available-drivers", s.src.UsersAvailableDrivers),
	)
	if err != nil {
		return nil, err
	}
	observability.FallbackStepsTotal.WithLabelValues("driver_directory", out.Step).Inc()

	drivers := make([]Driver, 0, len(raws))
	for _, raw := range raws {
		d, err := NormalizeDriver(raw)
		if err != nil {
			s.log.WithFields(logrus.Fields{"op": "list available drivers", "error": err}).Warn("skipping malformed driver record")
			continue
		}
		if d.Claimable() {
			drivers = append(drivers, d)
		}
	}
	return drivers, nil
}

func (s *Service) ListAvailableCars(ctx context.Context) ([]Car, error) {
	raws, out, err := chain.First(ctx, s.log, "list available cars",
		lookup("cars/available", s.src.AvailableCars),
		lookup("users/available-cars", s.src.UsersAvailableCars),
	)
	if err != nil {
		return nil, err
	}
	observability.FallbackStepsTotal.WithLabelValues("car_directory", out.Step).Inc()

	cars := make([]Car, 0, len(raws))
	for _, raw := range raws {
		c, err := NormalizeCar(raw)
		if err != nil {
			s.log.WithFields(logrus.Fields{"op": "list available cars", "error": err}).Warn("skipping malformed car record")
			continue
		}
		if c.Claimable() {
			cars = append(cars, c)
		}
	}
	return cars, nil
}

// OrganizationDrivers lists every driver of the owner, normalized but not filtered.
func (s *Service) OrganizationDrivers(ctx context.Context, ownerID types.ID) ([]Driver, error) {
	raws, err := s.src.OrganizationDrivers(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	drivers := make([]Driver, 0, len(raws))
	for _, raw := range raws {
		d, err := NormalizeDriver(raw)
		if err != nil {
			s.log.WithFields(logrus.Fields{"op": "organization drivers", "owner_id": ownerID, "error": err}).Warn("skipping malformed driver record")
			continue
		}
		drivers = append(drivers, d)
	}
	return drivers, nil
}

func (s *Service) OrganizationCars(ctx context.Context, ownerID types.ID) ([]Car, error) {
	raws, err := s.src.OrganizationCars(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	cars := make([]Car, 0, len(raws))
	for _, raw := range raws {
		c, err := NormalizeCar(raw)
		if err != nil {
			s.log.WithFields(logrus.Fields{"op": "organization cars", "owner_id": ownerID, "error": err}).Warn("skipping malformed car record")
			continue
		}
		cars = append(cars, c)
	}
	return cars, nil
}

// DriverAvailable asks the authority directly. Never cached.
func (s *Service) DriverAvailable(ctx context.Context, driverID types.ID) (bool, error) {
	return s.src.DriverAvailability(ctx, driverID)
}

func (s *Service) CarAvailable(ctx context.Context, carID types.ID) (bool, error) {
	return s.src.CarAvailability(ctx, carID)
}
