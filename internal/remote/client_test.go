package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"fleetclaim/internal/fault"
	"fleetclaim/internal/modules/assignment"
	"fleetclaim/internal/session"
	"fleetclaim/internal/types"
)

func testServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	log := logrus.New()
	log.SetOutput(io.Discard)
	client := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second, RetryAttempts: 3, RetryBaseDelay: time.Millisecond}, log)
	client.sleep = func(context.Context, time.Duration) error { return nil }
	return srv, client
}

func ctxWithToken(token string) context.Context {
	return session.With(context.Background(), session.Session{OperatorID: "op1", Token: token})
}

// hangUp closes the connection without a response to simulate a reset.
func hangUp(t *testing.T, w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		t.Fatal("response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		t.Fatalf("hijack: %v", err)
	}
	conn.Close()
}

func TestAvailableDrivers_UnwrapsEnvelope(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drivers/available" {
			t.Errorf("path = %q, want /drivers/available", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"data": {"results": [{"id": 1}, {"id": 2}]}}`))
	})

	got, err := client.AvailableDrivers(ctxWithToken("tok-1"))
	if err != nil {
		t.Fatalf("AvailableDrivers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestList_BareArrayAndNamedKey(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/available-cars":
			w.Write([]byte(`[{"car_id": "c1"}]`))
		case "/organizations/org%201/cars", "/organizations/org 1/cars":
			w.Write([]byte(`{"cars": [{"car_id": "c2"}, {"car_id": "c3"}]}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})

	cars, err := client.UsersAvailableCars(context.Background())
	if err != nil || len(cars) != 1 {
		t.Fatalf("UsersAvailableCars = %d, %v", len(cars), err)
	}
	cars, err = client.OrganizationCars(context.Background(), "org 1")
	if err != nil || len(cars) != 2 {
		t.Fatalf("OrganizationCars = %d, %v", len(cars), err)
	}
}

func TestRead_RetriesTransportFailures(t *testing.T) {
	var hits int32
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			hangUp(t, w)
			return
		}
		w.Write([]byte(`[]`))
	})

	got, err := client.AvailableDrivers(context.Background())
	if err != nil {
		t.Fatalf("AvailableDrivers: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Fatalf("hits = %d, want 3", n)
	}
}

func TestRead_GivesUpAfterMaxAttempts(t *testing.T) {
	var hits int32
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		hangUp(t, w)
	})

	_, err := client.AvailableCars(context.Background())
	if !fault.Is(err, fault.KindNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Fatalf("hits = %d, want 3", n)
	}
}

func TestRead_NoRetryOnHTTPError(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		var hits int32
		_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(status)
			w.Write([]byte(`{"detail":"nope"}`))
		})
		_, err := client.OrderDetail(context.Background(), "42")
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		if n := atomic.LoadInt32(&hits); n != 1 {
			t.Fatalf("status %d: hits = %d, want 1", status, n)
		}
	}
}

func TestAcceptOrder_NeverRetried(t *testing.T) {
	var hits int32
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		hangUp(t, w)
	})

	_, err := client.AcceptOrder(context.Background(), "42", "")
	if !fault.Is(err, fault.KindNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("hits = %d, want exactly 1", n)
	}
}

func TestAcceptOrder_Success(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/assignments/accept" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["order_id"] != "42" || len(req) != 1 {
			t.Errorf("payload = %v", req)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success": true, "assignment": {"id": 7, "order": 42, "status": "assigned", "assigned_by": "op1"}}`))
	})

	a, err := client.AcceptOrder(context.Background(), "42", "")
	if err != nil {
		t.Fatalf("AcceptOrder: %v", err)
	}
	if a.ID != "7" || a.OrderID != "42" {
		t.Fatalf("assignment = %+v", a)
	}
	if a.Status != assignment.StatusPending {
		t.Fatalf("Status = %q, want PENDING", a.Status)
	}
}

func TestAcceptOrder_ConflictShapes(t *testing.T) {
	cases := []struct {
		status int
		body   string
	}{
		{http.StatusConflict, `{"detail": "taken"}`},
		{http.StatusBadRequest, `{"error": "Order already assigned"}`},
		{http.StatusOK, `{"success": false, "message": "This order has an active assignment"}`},
	}
	for _, tc := range cases {
		_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		})
		_, err := client.AcceptOrder(context.Background(), "42", "")
		if !fault.Is(err, fault.KindConflict) {
			t.Errorf("%d %s: expected conflict, got %v", tc.status, tc.body, err)
		}
	}
}

func TestWalletBalance(t *testing.T) {
	bodies := map[string]int64{
		`{"balance": "1000.00"}`:             100000,
		`{"data": {"available_balance": 25}}`: 2500,
		`{"amount": 0}`:                      0,
	}
	for body, want := range bodies {
		_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		got, err := client.WalletBalance(context.Background())
		if err != nil {
			t.Fatalf("%s: %v", body, err)
		}
		if got.Amount != want {
			t.Errorf("%s: amount = %d, want %d", body, got.Amount, want)
		}
	}
}

func TestWalletBalance_Missing(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"currency": "INR"}`))
	})
	if _, err := client.WalletBalance(context.Background()); err == nil {
		t.Fatal("expected error for missing balance")
	}
}

func TestOrderDetail(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/42" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"data": {"id": 42, "estimated_price": 900, "trip_status": ""}}`))
	})
	o, err := client.OrderDetail(context.Background(), "42")
	if err != nil {
		t.Fatalf("OrderDetail: %v", err)
	}
	if o.RequiredAmount() != types.Major(900) {
		t.Fatalf("RequiredAmount = %v", o.RequiredAmount())
	}
}

func TestAvailability(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/drivers/d1/availability":
			w.Write([]byte(`{"is_available": false}`))
		case "/cars/c1/availability":
			w.Write([]byte(`{"available": true}`))
		default:
			w.Write([]byte(`{}`))
		}
	})
	ok, err := client.DriverAvailability(context.Background(), "d1")
	if err != nil || ok {
		t.Fatalf("DriverAvailability = %v, %v", ok, err)
	}
	ok, err = client.CarAvailability(context.Background(), "c1")
	if err != nil || !ok {
		t.Fatalf("CarAvailability = %v, %v", ok, err)
	}
	if _, err := client.DriverAvailability(context.Background(), "d2"); err == nil {
		t.Fatal("expected error when availability flag is missing")
	}
}

func TestUpdateStatus_Classification(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   fault.Kind
	}{
		{http.StatusNotFound, `{"detail": "Not found."}`, fault.KindNotFound},
		{http.StatusBadRequest, `{"detail": "Invalid status transition from DRIVING to PENDING"}`, fault.KindInvalidTransition},
		{http.StatusUnauthorized, `{"detail": "expired"}`, fault.KindAuthExpired},
		{http.StatusServiceUnavailable, ``, fault.KindServer},
	}
	for _, tc := range cases {
		_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPatch || r.URL.Path != "/assignments/a1/status" {
				t.Errorf("%s %s", r.Method, r.URL.Path)
			}
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		})
		_, err := client.UpdateStatus(context.Background(), "a1", assignment.StatusPending)
		if got := fault.KindOf(err); got != tc.want {
			t.Errorf("%d: kind = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestAssignmentsByOrder(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("order_id") != "42" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"assignments": [
			{"id": "a1", "order_id": 42, "status": "cancelled"},
			{"id": "a2", "order_id": 42, "assignment_status": "DRIVING", "driver_id": "d1", "car_id": "c1"}
		]}`))
	})
	list, err := client.AssignmentsByOrder(context.Background(), "42")
	if err != nil {
		t.Fatalf("AssignmentsByOrder: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].Status != assignment.StatusCancelled || list[1].Status != assignment.StatusDriving {
		t.Fatalf("statuses = %q, %q", list[0].Status, list[1].Status)
	}
	if list[1].Stage != assignment.StageInProgress {
		t.Fatalf("stage = %q", list[1].Stage)
	}
}

func TestAcceptOrder_UnreadableSuccessIsUnconfirmed(t *testing.T) {
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`<html>ok</html>`))
	})
	_, err := client.AcceptOrder(context.Background(), "42", "")
	if !fault.IsUnconfirmed(err) {
		t.Fatalf("expected unconfirmed claim, got %v", err)
	}
	if fault.KindOf(err) != fault.KindServer {
		t.Fatalf("kind = %q, want server", fault.KindOf(err))
	}
}
