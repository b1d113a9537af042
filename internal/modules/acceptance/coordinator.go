// README: Acceptance coordinator orchestrates claiming an order and binding resources.
// Every claim runs the same steps in order: identity, balance pre-check, one claim call,
// response interpretation. Only a definite balance shortfall stops a claim locally.
package acceptance

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"fleetclaim/internal/fault"
	"fleetclaim/internal/modules/assignment"
	"fleetclaim/internal/modules/audit"
	"fleetclaim/internal/modules/eligibility"
	"fleetclaim/internal/modules/fallback"
	"fleetclaim/internal/modules/order"
	"fleetclaim/internal/observability"
	"fleetclaim/internal/session"
	"fleetclaim/internal/types"
)

type Claimer interface {
	AcceptOrder(ctx context.Context, orderID types.ID, notes string) (*assignment.Assignment, error)
}

type OrderReader interface {
	OrderDetail(ctx context.Context, orderID types.ID) (*order.Order, error)
}

type Eligibility interface {
	CheckBalance(ctx context.Context, orderID types.ID) (eligibility.Result, error)
	CheckResources(ctx context.Context, driverID, carID types.ID) error
}

type Assignments interface {
	Bind(ctx context.Context, id, driverID, carID types.ID) (*assignment.Assignment, error)
	Transition(ctx context.Context, id types.ID, to assignment.Status) (*assignment.Assignment, error)
}

type Selector interface {
	SelectDriver(ctx context.Context, sess session.Session) (fallback.Selection, error)
	SelectCar(ctx context.Context, sess session.Session) (fallback.Selection, error)
}

type Recorder interface {
	Append(ctx context.Context, e audit.Entry) error
}

// Deps wires the coordinator. Guard, Events and Audit are optional.
type Deps struct {
	Claims      Claimer
	Orders      OrderReader
	Eligibility Eligibility
	Assignments Assignments
	Selector    Selector
	Guard       Guard
	Events      Publisher
	Audit       Recorder
	Log         logrus.FieldLogger
	Now         func() time.Time
}

type Coordinator struct {
	claims   Claimer
	orders   OrderReader
	elig     Eligibility
	asg      Assignments
	selector Selector
	guard    Guard
	events   Publisher
	audit    Recorder
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewCoordinator(d Deps) *Coordinator {
	c := &Coordinator{
		claims:   d.Claims,
		orders:   d.Orders,
		elig:     d.Eligibility,
		asg:      d.Assignments,
		selector: d.Selector,
		guard:    d.Guard,
		events:   d.Events,
		audit:    d.Audit,
		log:      d.Log,
		now:      d.Now,
	}
	if c.guard == nil {
		c.guard = NoopGuard{}
	}
	if c.events == nil {
		c.events = NoopPublisher{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c
}

// AcceptCommand claims an order. OperatorID is informational only; the session decides.
type AcceptCommand struct {
	OrderID    types.ID
	OperatorID types.ID
	Notes      string
}

type AssignCommand struct {
	OrderID    types.ID
	OperatorID types.ID
	DriverID   types.ID
	CarID      types.ID
	Notes      string
}

// BindCommand binds resources to an existing assignment. Empty ids are selected.
type BindCommand struct {
	AssignmentID types.ID
	DriverID     types.ID
	CarID        types.ID
}

type TransitionCommand struct {
	AssignmentID types.ID
	To           assignment.Status
}

// Result is an assignment enriched for display.
type Result struct {
	Assignment *assignment.Assignment `json:"assignment"`
	Order      *order.Summary         `json:"order,omitempty"`
	Driver     *fallback.Selection    `json:"driver_selection,omitempty"`
	Car        *fallback.Selection    `json:"car_selection,omitempty"`
	Degraded   bool                   `json:"degraded,omitempty"`
}

const (
	pathAccept = "accept"
	pathDirect = "direct"
	pathManual = "manual"
)

// AcceptOrder claims the order and leaves the assignment PENDING.
func (c *Coordinator) AcceptOrder(ctx context.Context, cmd AcceptCommand) (*Result, error) {
	res, sess, err := c.claim(ctx, pathAccept, cmd)
	c.record(ctx, audit.Entry{
		Operation:  audit.OpAccept,
		OrderID:    cmd.OrderID,
		OperatorID: sess.OperatorID,
	}, res, err)
	return res, err
}

// AssignDirect claims the order and binds the given driver and car in one operation.
// When binding fails after a successful claim the returned Result still carries the
// PENDING assignment alongside the error.
func (c *Coordinator) AssignDirect(ctx context.Context, cmd AssignCommand) (*Result, error) {
	entry := audit.Entry{Operation: audit.OpAssignDirect, OrderID: cmd.OrderID, DriverID: cmd.DriverID, CarID: cmd.CarID}
	res, err := c.assignDirect(ctx, cmd, &entry)
	c.record(ctx, entry, res, err)
	return res, err
}

func (c *Coordinator) assignDirect(ctx context.Context, cmd AssignCommand, entry *audit.Entry) (*Result, error) {
	const op = "assign direct"
	if cmd.DriverID == "" || cmd.CarID == "" {
		fields := map[string]string{}
		if cmd.DriverID == "" {
			fields["driver_id"] = "required"
		}
		if cmd.CarID == "" {
			fields["car_id"] = "required"
		}
		return nil, &fault.Error{Kind: fault.KindValidation, Op: op, Message: "driver and car are required", Fields: fields}
	}
	if _, err := session.Require(ctx, c.now()); err != nil {
		return nil, err
	}
	if err := c.elig.CheckResources(ctx, cmd.DriverID, cmd.CarID); err != nil {
		return nil, err
	}
	res, sess, err := c.claim(ctx, pathDirect, AcceptCommand{OrderID: cmd.OrderID, OperatorID: cmd.OperatorID, Notes: cmd.Notes})
	entry.OperatorID = sess.OperatorID
	if err != nil {
		return nil, err
	}
	return c.bindClaimed(ctx, sess, res, cmd.DriverID, cmd.CarID)
}

// AcceptManual is the legacy path: claim, then pick a driver and a car through the
// fallback selector, then bind them.
func (c *Coordinator) AcceptManual(ctx context.Context, cmd AcceptCommand) (*Result, error) {
	entry := audit.Entry{Operation: audit.OpAcceptManual, OrderID: cmd.OrderID}
	res, err := c.acceptManual(ctx, cmd, &entry)
	if res != nil {
		if res.Driver != nil {
			entry.DriverID = res.Driver.ID
		}
		if res.Car != nil {
			entry.CarID = res.Car.ID
		}
	}
	c.record(ctx, entry, res, err)
	return res, err
}

func (c *Coordinator) acceptManual(ctx context.Context, cmd AcceptCommand, entry *audit.Entry) (*Result, error) {
	res, sess, err := c.claim(ctx, pathManual, cmd)
	entry.OperatorID = sess.OperatorID
	if err != nil {
		return nil, err
	}
	driver, car, err := c.selectResources(ctx, sess, "", "")
	if err != nil {
		return res, err
	}
	res.Driver, res.Car = driver, car
	res.Degraded = res.Degraded || driver.Degraded || car.Degraded
	return c.bindClaimed(ctx, sess, res, driver.ID, car.ID)
}

// BindResources attaches a driver and car to an assignment. Missing ids are filled in by
// the fallback selector.
func (c *Coordinator) BindResources(ctx context.Context, cmd BindCommand) (*Result, error) {
	entry := audit.Entry{Operation: audit.OpBind, AssignmentID: cmd.AssignmentID}
	res, err := c.bindResources(ctx, cmd, &entry)
	if res != nil && res.Assignment != nil {
		entry.OrderID = res.Assignment.OrderID
		entry.DriverID = res.Assignment.DriverID
		entry.CarID = res.Assignment.CarID
	}
	c.record(ctx, entry, res, err)
	return res, err
}

func (c *Coordinator) bindResources(ctx context.Context, cmd BindCommand, entry *audit.Entry) (*Result, error) {
	sess, err := session.Require(ctx, c.now())
	if err != nil {
		return nil, err
	}
	entry.OperatorID = sess.OperatorID
	res := &Result{}
	driverID, carID := cmd.DriverID, cmd.CarID
	if driverID == "" || carID == "" {
		driver, car, err := c.selectResources(ctx, sess, driverID, carID)
		if err != nil {
			return nil, err
		}
		if driverID == "" {
			res.Driver = driver
			driverID = driver.ID
			res.Degraded = res.Degraded || driver.Degraded
		}
		if carID == "" {
			res.Car = car
			carID = car.ID
			res.Degraded = res.Degraded || car.Degraded
		}
	}
	asg, err := c.asg.Bind(ctx, cmd.AssignmentID, driverID, carID)
	if err != nil {
		return nil, err
	}
	res.Assignment = asg
	res.Order = c.summary(ctx, asg.OrderID)
	c.publish(ctx, EventBound, sess, asg)
	return res, nil
}

// Transition moves an assignment along its lifecycle.
func (c *Coordinator) Transition(ctx context.Context, cmd TransitionCommand) (*Result, error) {
	entry := audit.Entry{Operation: audit.OpTransition, AssignmentID: cmd.AssignmentID, Detail: "to " + string(cmd.To)}
	sess, err := session.Require(ctx, c.now())
	var res *Result
	if err == nil {
		entry.OperatorID = sess.OperatorID
		var asg *assignment.Assignment
		asg, err = c.asg.Transition(ctx, cmd.AssignmentID, cmd.To)
		if err == nil {
			res = &Result{Assignment: asg}
			entry.OrderID = asg.OrderID
			c.publish(ctx, EventTransitioned, sess, asg)
		}
	}
	c.record(ctx, entry, res, err)
	return res, err
}

// claim runs the shared claim protocol. The session is returned even on failure when it
// was resolved, for auditing.
func (c *Coordinator) claim(ctx context.Context, path string, cmd AcceptCommand) (*Result, session.Session, error) {
	const op = "accept order"
	res, sess, err := c.doClaim(ctx, op, cmd)
	observability.ClaimsTotal.WithLabelValues(path, observability.Outcome(string(fault.KindOf(err)), err)).Inc()
	return res, sess, err
}

func (c *Coordinator) doClaim(ctx context.Context, op string, cmd AcceptCommand) (*Result, session.Session, error) {
	if cmd.OrderID == "" {
		return nil, session.Session{}, &fault.Error{Kind: fault.KindValidation, Op: op, Message: "order id is required", Fields: map[string]string{"order_id": "required"}}
	}
	sess, err := session.Require(ctx, c.now())
	if err != nil {
		return nil, session.Session{}, err
	}
	log := c.log.WithFields(logrus.Fields{"op": op, "order_id": cmd.OrderID, "operator_id": sess.OperatorID})
	if cmd.OperatorID != "" && cmd.OperatorID != sess.OperatorID {
		log.WithField("requested_operator_id", cmd.OperatorID).Warn("ignoring caller-supplied operator id")
	}

	check, err := c.elig.CheckBalance(ctx, cmd.OrderID)
	if err != nil {
		return nil, sess, err
	}
	if check.Order != nil && !check.Order.IsOpen() {
		log.WithField("trip_status", check.Order.TripStatus).Warn("order does not look open, claiming anyway")
	}
	if err := check.Err(op); err != nil {
		log.WithFields(logrus.Fields{"required": check.Required.String(), "available": check.Available.String()}).Info("claim blocked by wallet balance")
		return nil, sess, err
	}

	acquired, gerr := c.guard.Acquire(ctx, cmd.OrderID, sess.OperatorID)
	switch {
	case gerr != nil:
		observability.DegradedChecksTotal.WithLabelValues("claim_guard").Inc()
		log.WithField("error", gerr).Warn("claim guard unavailable, continuing")
	case !acquired:
		return nil, sess, fault.New(fault.KindRejected, op, "A claim for this order is already in progress.")
	}

	asg, err := c.claims.AcceptOrder(ctx, cmd.OrderID, cmd.Notes)
	if err != nil {
		if gerr == nil && !fault.IsUnconfirmed(err) {
			if rerr := c.guard.Release(context.WithoutCancel(ctx), cmd.OrderID, sess.OperatorID); rerr != nil {
				log.WithField("error", rerr).Warn("claim guard release failed")
			}
		}
		switch {
		case ctx.Err() != nil:
			log.WithField("error", err).Warn("claim abandoned; the order may still have been claimed")
		case fault.IsUnconfirmed(err):
			log.WithField("error", err).Warn("claim reached the authority but the reply was unreadable; keeping the guard")
		case fault.Is(err, fault.KindConflict):
			log.Info("order already taken by another operator")
		default:
			log.WithField("error", err).Warn("claim failed")
		}
		return nil, sess, err
	}
	if asg.AssignedBy == "" {
		asg.AssignedBy = sess.OperatorID
	}
	log.WithField("assignment_id", asg.ID).Info("order claimed")

	res := &Result{Assignment: asg, Degraded: check.Degraded}
	if check.Order != nil {
		sum := check.Order.Summary()
		res.Order = &sum
	}
	c.publish(ctx, EventClaimed, sess, asg)
	return res, sess, nil
}

// bindClaimed binds resources right after a claim. On failure the claimed result is
// returned together with the error.
func (c *Coordinator) bindClaimed(ctx context.Context, sess session.Session, res *Result, driverID, carID types.ID) (*Result, error) {
	asg, err := c.asg.Bind(ctx, res.Assignment.ID, driverID, carID)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"op":            "bind resources",
			"assignment_id": res.Assignment.ID,
			"operator_id":   sess.OperatorID,
			"error":         err,
		}).Warn("claimed order left without resources")
		return res, err
	}
	res.Assignment = asg
	c.publish(ctx, EventBound, sess, asg)
	return res, nil
}

// selectResources runs the driver and car selections concurrently. Ids already known are
// skipped.
func (c *Coordinator) selectResources(ctx context.Context, sess session.Session, driverID, carID types.ID) (*fallback.Selection, *fallback.Selection, error) {
	var driver, car fallback.Selection
	g, gctx := errgroup.WithContext(ctx)
	if driverID == "" {
		g.Go(func() error {
			var err error
			driver, err = c.selector.SelectDriver(gctx, sess)
			return err
		})
	}
	if carID == "" {
		g.Go(func() error {
			var err error
			car, err = c.selector.SelectCar(gctx, sess)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return &driver, &car, nil
}

func (c *Coordinator) summary(ctx context.Context, orderID types.ID) *order.Summary {
	if orderID == "" || c.orders == nil {
		return nil
	}
	o, err := c.orders.OrderDetail(ctx, orderID)
	if err != nil {
		c.log.WithFields(logrus.Fields{"op": "enrich", "order_id": orderID, "error": err}).Warn("order detail unavailable for display")
		return nil
	}
	sum := o.Summary()
	return &sum
}

func (c *Coordinator) publish(ctx context.Context, typ EventType, sess session.Session, asg *assignment.Assignment) {
	e := Event{
		Type:         typ,
		OccurredAt:   c.now().UTC(),
		OrderID:      asg.OrderID,
		AssignmentID: asg.ID,
		OperatorID:   sess.OperatorID,
		DriverID:     asg.DriverID,
		CarID:        asg.CarID,
		Status:       asg.Status,
	}
	if err := c.events.Publish(ctx, e); err != nil {
		c.log.WithFields(logrus.Fields{"op": "publish", "event": typ, "assignment_id": asg.ID, "error": err}).Warn("event publish failed")
	}
}

func (c *Coordinator) record(ctx context.Context, e audit.Entry, res *Result, err error) {
	if c.audit == nil {
		return
	}
	e.OccurredAt = c.now().UTC()
	e.Outcome = observability.Outcome(string(fault.KindOf(err)), err)
	if err != nil && e.Detail == "" {
		e.Detail = err.Error()
	}
	if res != nil && res.Assignment != nil && e.AssignmentID == "" {
		e.AssignmentID = res.Assignment.ID
	}
	if aerr := c.audit.Append(context.WithoutCancel(ctx), e); aerr != nil {
		c.log.WithFields(logrus.Fields{"op": "audit", "operation": e.Operation, "error": aerr}).Warn("audit append failed")
	}
}
