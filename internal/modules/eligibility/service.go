// README: Eligibility checks run before a claim: wallet balance against the order price,
// and resource availability flags. Degraded reads pass; only a definite shortfall blocks.
package eligibility

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"fleetclaim/internal/fault"
	"fleetclaim/internal/modules/order"
	"fleetclaim/internal/observability"
	"fleetclaim/internal/types"
)

type OrderReader interface {
	OrderDetail(ctx context.Context, orderID types.ID) (*order.Order, error)
}

type WalletReader interface {
	WalletBalance(ctx context.Context) (types.Money, error)
}

type AvailabilityReader interface {
	DriverAvailable(ctx context.Context, driverID types.ID) (bool, error)
	CarAvailable(ctx context.Context, carID types.ID) (bool, error)
}

// Result of a balance check. Order is nil when the order read failed.
type Result struct {
	Sufficient bool
	Required   types.Money
	Available  types.Money
	Degraded   bool
	Order      *order.Order
}

// Err returns InsufficientBalance when the check definitively failed.
func (r Result) Err(op string) error {
	if r.Sufficient {
		return nil
	}
	return fault.InsufficientBalance(op, r.Required, r.Available)
}

type Service struct {
	orders    OrderReader
	wallet    WalletReader
	resources AvailabilityReader
	log       logrus.FieldLogger
}

func NewService(orders OrderReader, wallet WalletReader, resources AvailabilityReader, log logrus.FieldLogger) *Service {
	return &Service{orders: orders, wallet: wallet, resources: resources, log: log}
}

// CheckBalance fetches the order and the wallet independently and compares the required
// amount against the balance. A failed read marks the result degraded and sufficient.
// The returned error is only ever the context's.
func (s *Service) CheckBalance(ctx context.Context, orderID types.ID) (Result, error) {
	var (
		o        *order.Order
		bal      types.Money
		orderErr error
		walErr   error
	)
	var g errgroup.Group
	g.Go(func() error {
		o, orderErr = s.orders.OrderDetail(ctx, orderID)
		return nil
	})
	g.Go(func() error {
		bal, walErr = s.wallet.WalletBalance(ctx)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Sufficient: true, Order: o, Available: bal}
	if orderErr != nil {
		s.degraded("order_detail", orderID, orderErr)
		res.Degraded = true
		res.Order = nil
		return res, nil
	}
	res.Required = o.RequiredAmount()
	if res.Required.IsZero() {
		return res, nil
	}
	if walErr != nil {
		s.degraded("wallet_balance", orderID, walErr)
		res.Degraded = true
		return res, nil
	}
	res.Sufficient = !bal.Less(res.Required)
	return res, nil
}

// CheckResources rejects a driver or car the authority explicitly reports as unavailable.
// Lookup failures pass; the bind call is authoritative.
func (s *Service) CheckResources(ctx context.Context, driverID, carID types.ID) error {
	const op = "check resources"
	if driverID != "" {
		ok, err := s.resources.DriverAvailable(ctx, driverID)
		switch {
		case err != nil:
			s.degraded("driver_availability", "", err)
		case !ok:
			return fault.Conflict(op, "driver "+driverID.String()+" is not available")
		}
	}
	if carID != "" {
		ok, err := s.resources.CarAvailable(ctx, carID)
		switch {
		case err != nil:
			s.degraded("car_availability", "", err)
		case !ok:
			return fault.Conflict(op, "car "+carID.String()+" is not available")
		}
	}
	return ctx.Err()
}

func (s *Service) degraded(check string, orderID types.ID, err error) {
	observability.DegradedChecksTotal.WithLabelValues(check).Inc()
	fields := logrus.Fields{"op": "eligibility", "check": check, "error": err}
	if orderID != "" {
		fields["order_id"] = orderID
	}
	s.log.WithFields(fields).Warn("eligibility read failed, treating check as passed")
}
