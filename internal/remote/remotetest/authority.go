// Package remotetest serves an in-memory dispatch authority over httptest. It enforces
// the single-active-assignment rule per order the way the real authority does, so
// coordination code can be raced against it.
package remotetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetclaim/internal/modules/assignment"
	"fleetclaim/internal/types"
)

type Driver struct {
	ID                string
	Owner             string
	Status            string
	StatusKey         string // "status" or "driver_status"; defaults to "status"
	IsAvailable       *bool
	CurrentAssignment string
	Name              string
}

type Car struct {
	ID                string
	Owner             string
	Status            string
	IsAvailable       *bool
	CurrentAssignment string
	Plate             string
}

type Order struct {
	ID             string
	EstimatedPrice string
	VendorPrice    string
	TripStatus     string
	CustomerName   string
	Pickup         string
	Dropoff        string
}

// Authority is safe for concurrent use.
type Authority struct {
	Server *httptest.Server

	mu          sync.Mutex
	tokens      map[string]string // bearer token -> operator id
	wallets     map[string]string // operator id -> balance
	orders      map[string]*Order
	drivers     []*Driver
	cars        []*Car
	assignments map[string]*assignment.Assignment
	owners      map[string]string // assignment id -> owner
	unavailable map[string]bool   // driver/car ids forced unavailable on the availability endpoint
	failures    map[string]int    // "METHOD path" -> status to return
	calls       map[string]int
}

func New() *Authority {
	a := &Authority{
		tokens:      map[string]string{},
		wallets:     map[string]string{},
		orders:      map[string]*Order{},
		assignments: map[string]*assignment.Assignment{},
		owners:      map[string]string{},
		unavailable: map[string]bool{},
		failures:    map[string]int{},
		calls:       map[string]int{},
	}
	a.Server = httptest.NewServer(a.routes())
	return a
}

func (a *Authority) Close() { a.Server.Close() }

func (a *Authority) URL() string { return a.Server.URL }

// AddOperator registers a bearer token for an operator with a wallet balance.
func (a *Authority) AddOperator(token, operatorID, balance string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens[token] = operatorID
	a.wallets[operatorID] = balance
}

func (a *Authority) AddOrder(o Order) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := o
	a.orders[o.ID] = &cp
}

func (a *Authority) AddDriver(d Driver) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := d
	a.drivers = append(a.drivers, &cp)
}

func (a *Authority) AddCar(c Car) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := c
	a.cars = append(a.cars, &cp)
}

// SetUnavailable makes the availability endpoint report false for id.
func (a *Authority) SetUnavailable(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unavailable[id] = true
}

// Fail makes "METHOD path" (e.g. "GET /drivers/available") answer with status.
func (a *Authority) Fail(route string, status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[route] = status
}

// Calls returns how many times "METHOD pattern" was hit.
func (a *Authority) Calls(route string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[route]
}

// PutAssignment seeds an assignment directly.
func (a *Authority) PutAssignment(asg assignment.Assignment, owner string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := asg
	a.assignments[asg.ID.String()] = &cp
	a.owners[asg.ID.String()] = owner
}

// ActiveAssignments counts non-cancelled assignments for an order.
func (a *Authority) ActiveAssignments(orderID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, asg := range a.assignments {
		if asg.OrderID.String() == orderID && asg.Active() {
			n++
		}
	}
	return n
}

func (a *Authority) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h func(w http.ResponseWriter, r *http.Request, operator string)) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			a.mu.Lock()
			a.calls[pattern]++
			status, failing := a.failures[r.Method+" "+r.URL.Path]
			operator, authed := a.tokens[bearer(r)]
			a.mu.Unlock()
			if failing {
				writeJSON(w, status, map[string]any{"detail": "injected failure"})
				return
			}
			if !authed {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Given token not valid for any token type"})
				return
			}
			h(w, r, operator)
		})
	}

	handle("GET /drivers/available", func(w http.ResponseWriter, r *http.Request, _ string) {
		writeJSON(w, http.StatusOK, map[string]any{"data": a.driverRecords(true)})
	})
	handle("GET /users/available-drivers", func(w http.ResponseWriter, r *http.Request, _ string) {
		writeJSON(w, http.StatusOK, a.driverRecords(true))
	})
	handle("GET /cars/available", func(w http.ResponseWriter, r *http.Request, _ string) {
		writeJSON(w, http.StatusOK, map[string]any{"results": a.carRecords(true, "")})
	})
	handle("GET /users/available-cars", func(w http.ResponseWriter, r *http.Request, _ string) {
		writeJSON(w, http.StatusOK, a.carRecords(true, ""))
	})
	handle("GET /organizations/{owner}/drivers", func(w http.ResponseWriter, r *http.Request, _ string) {
		owner := r.PathValue("owner")
		out := []map[string]any{}
		for _, d := range a.driverRecords(false) {
			if d["owner"] == owner {
				out = append(out, d)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"drivers": out})
	})
	handle("GET /organizations/{owner}/cars", func(w http.ResponseWriter, r *http.Request, _ string) {
		writeJSON(w, http.StatusOK, map[string]any{"cars": a.carRecords(false, r.PathValue("owner"))})
	})
	handle("GET /drivers/{id}/availability", func(w http.ResponseWriter, r *http.Request, _ string) {
		a.availability(w, r.PathValue("id"), true)
	})
	handle("GET /cars/{id}/availability", func(w http.ResponseWriter, r *http.Request, _ string) {
		a.availability(w, r.PathValue("id"), false)
	})
	handle("GET /orders/{id}", a.handleOrder)
	handle("GET /wallet/balance", func(w http.ResponseWriter, r *http.Request, operator string) {
		a.mu.Lock()
		bal := a.wallets[operator]
		a.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"balance": bal, "currency": "INR"})
	})
	handle("POST /assignments/accept", a.handleAccept)
	handle("PATCH /assignments/{id}/resources", a.handleBind)
	handle("PATCH /assignments/{id}/status", a.handleStatus)
	handle("GET /assignments/{id}", func(w http.ResponseWriter, r *http.Request, _ string) {
		a.mu.Lock()
		asg, ok := a.assignments[r.PathValue("id")]
		var cp assignment.Assignment
		if ok {
			cp = *asg
		}
		a.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
			return
		}
		writeJSON(w, http.StatusOK, cp)
	})
	handle("GET /assignments", func(w http.ResponseWriter, r *http.Request, _ string) {
		orderID := r.URL.Query().Get("order_id")
		owner := r.URL.Query().Get("owner_id")
		a.mu.Lock()
		out := []assignment.Assignment{}
		for id, asg := range a.assignments {
			if orderID != "" && asg.OrderID.String() != orderID {
				continue
			}
			if owner != "" && a.owners[id] != owner {
				continue
			}
			out = append(out, *asg)
		}
		a.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"assignments": out})
	})
	return mux
}

func (a *Authority) handleOrder(w http.ResponseWriter, r *http.Request, _ string) {
	a.mu.Lock()
	o, ok := a.orders[r.PathValue("id")]
	var cp Order
	if ok {
		cp = *o
	}
	a.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	body := map[string]any{
		"id":              cp.ID,
		"trip_status":     cp.TripStatus,
		"customer_name":   cp.CustomerName,
		"pickup_location": cp.Pickup,
		"drop_location":   cp.Dropoff,
	}
	if cp.EstimatedPrice != "" {
		body["estimated_price"] = cp.EstimatedPrice
	}
	if cp.VendorPrice != "" {
		body["vendor_price"] = cp.VendorPrice
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": body})
}

func (a *Authority) handleAccept(w http.ResponseWriter, r *http.Request, operator string) {
	var req struct {
		OrderID string `json:"order_id"`
		Notes   string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"order_id": []string{"This field is required."}})
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.orders[req.OrderID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Order not found."})
		return
	}
	for _, asg := range a.assignments {
		if asg.OrderID.String() == req.OrderID && asg.Active() {
			writeJSON(w, http.StatusConflict, map[string]any{"detail": "Order is already assigned to another vehicle owner."})
			return
		}
	}
	now := time.Now().UTC()
	asg := &assignment.Assignment{
		ID:         types.ID(uuid.NewString()),
		OrderID:    types.ID(req.OrderID),
		AssignedBy: types.ID(operator),
		Notes:      req.Notes,
		Stage:      assignment.StageAssigned,
		Status:     assignment.StatusPending,
		AssignedAt: now,
		UpdatedAt:  now,
	}
	a.assignments[asg.ID.String()] = asg
	a.owners[asg.ID.String()] = operator
	o.TripStatus = "ASSIGNED"
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "assignment": asg})
}

func (a *Authority) handleBind(w http.ResponseWriter, r *http.Request, _ string) {
	var req struct {
		DriverID string `json:"driver_id"`
		CarID    string `json:"car_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "malformed body"})
		return
	}
	if req.DriverID == "" || req.CarID == "" {
		fields := map[string][]string{}
		if req.DriverID == "" {
			fields["driver_id"] = []string{"This field is required."}
		}
		if req.CarID == "" {
			fields["car_id"] = []string{"This field is required."}
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fields})
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	asg, ok := a.assignments[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	if asg.Status != assignment.StatusPending {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"detail": fmt.Sprintf("Invalid status transition from %s to %s", asg.Status, assignment.StatusAssigned),
		})
		return
	}
	for _, d := range a.drivers {
		if d.ID == req.DriverID {
			if d.CurrentAssignment != "" {
				writeJSON(w, http.StatusConflict, map[string]any{"detail": "Driver already has an active assignment."})
				return
			}
			d.CurrentAssignment = asg.ID.String()
		}
	}
	for _, c := range a.cars {
		if c.ID == req.CarID {
			c.CurrentAssignment = asg.ID.String()
		}
	}
	asg.DriverID = types.ID(req.DriverID)
	asg.CarID = types.ID(req.CarID)
	asg.Status = assignment.StatusAssigned
	asg.Stage = assignment.StageAssigned
	asg.UpdatedAt = time.Now().UTC()
	writeJSON(w, http.StatusOK, asg)
}

func (a *Authority) handleStatus(w http.ResponseWriter, r *http.Request, _ string) {
	var req struct {
		AssignmentStatus string `json:"assignment_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "malformed body"})
		return
	}
	to := assignment.ParseStatus(req.AssignmentStatus)

	a.mu.Lock()
	defer a.mu.Unlock()
	asg, ok := a.assignments[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	if !to.Valid() {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": map[string][]string{
			"assignment_status": {fmt.Sprintf("%q is not a valid choice.", req.AssignmentStatus)},
		}})
		return
	}
	if !assignment.CanTransition(asg.Status, to) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"detail": fmt.Sprintf("Invalid status transition from %s to %s", asg.Status, to),
		})
		return
	}
	asg.Status = to
	asg.Stage = assignment.StageFor(to)
	asg.UpdatedAt = time.Now().UTC()
	if to.Terminal() {
		a.releaseLocked(asg.ID.String())
	}
	writeJSON(w, http.StatusOK, asg)
}

func (a *Authority) releaseLocked(assignmentID string) {
	for _, d := range a.drivers {
		if d.CurrentAssignment == assignmentID {
			d.CurrentAssignment = ""
		}
	}
	for _, c := range a.cars {
		if c.CurrentAssignment == assignmentID {
			c.CurrentAssignment = ""
		}
	}
}

func (a *Authority) availability(w http.ResponseWriter, id string, driver bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unavailable[id] {
		writeJSON(w, http.StatusOK, map[string]any{"is_available": false})
		return
	}
	if driver {
		for _, d := range a.drivers {
			if d.ID == id {
				ok := d.CurrentAssignment == "" && (d.IsAvailable == nil || *d.IsAvailable)
				writeJSON(w, http.StatusOK, map[string]any{"is_available": ok})
				return
			}
		}
	} else {
		for _, c := range a.cars {
			if c.ID == id {
				ok := c.CurrentAssignment == "" && (c.IsAvailable == nil || *c.IsAvailable)
				writeJSON(w, http.StatusOK, map[string]any{"available": ok})
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
}

// driverRecords renders drivers the way the authority does; onlyFree drops drivers
// already holding an assignment, mimicking the server-side "available" filter.
func (a *Authority) driverRecords(onlyFree bool) []map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []map[string]any{}
	for _, d := range a.drivers {
		if onlyFree && d.CurrentAssignment != "" {
			continue
		}
		key := d.StatusKey
		if key == "" {
			key = "status"
		}
		rec := map[string]any{
			"id":                 d.ID,
			"owner":              d.Owner,
			key:                  d.Status,
			"full_name":          d.Name,
			"current_assignment": nilIfEmpty(d.CurrentAssignment),
		}
		if d.IsAvailable != nil {
			rec["is_available"] = *d.IsAvailable
		}
		out = append(out, rec)
	}
	return out
}

func (a *Authority) carRecords(onlyFree bool, owner string) []map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []map[string]any{}
	for _, c := range a.cars {
		if onlyFree && c.CurrentAssignment != "" {
			continue
		}
		if owner != "" && c.Owner != owner {
			continue
		}
		rec := map[string]any{
			"car_id":             c.ID,
			"owner_id":           c.Owner,
			"status":             c.Status,
			"registration":       c.Plate,
			"current_assignment": nilIfEmpty(c.CurrentAssignment),
		}
		if c.IsAvailable != nil {
			rec["is_available"] = *c.IsAvailable
		}
		out = append(out, rec)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Bool is a helper for the optional IsAvailable fields.
func Bool(v bool) *bool { return &v }
