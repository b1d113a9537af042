// README: Order decoding tests over the response shapes the remote authority emits.
package order

import (
	"encoding/json"
	"testing"

	"fleetclaim/internal/types"
)

func decode(t *testing.T, raw string) Order {
	t.Helper()
	var o Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return o
}

func TestDecodeFlatOrder(t *testing.T) {
	o := decode(t, `{
		"id": 42,
		"trip_status": "pending",
		"estimated_price": "900.00",
		"vendor_price": 750,
		"customer_name": "Asha",
		"customer_phone": "+91-99999",
		"pickup_location": "Airport",
		"drop_location": "Station",
		"pickup_datetime": "2026-10-18T09:30:00Z"
	}`)
	if o.ID != "42" {
		t.Fatalf("ID = %q", o.ID)
	}
	if o.TripStatus != TripPending || !o.IsOpen() {
		t.Fatalf("status = %q open=%v", o.TripStatus, o.IsOpen())
	}
	if got := o.RequiredAmount(); got != types.Major(900) {
		t.Fatalf("RequiredAmount = %v", got)
	}
	if o.PickupAt == nil || o.PickupAt.Hour() != 9 {
		t.Fatalf("PickupAt = %v", o.PickupAt)
	}
	s := o.Summary()
	if s.CustomerName != "Asha" || s.Pickup != "Airport" || s.Dropoff != "Station" {
		t.Fatalf("summary = %+v", s)
	}
	if s.PriceDisplay != "900.00 INR" {
		t.Fatalf("price display = %q", s.PriceDisplay)
	}
}

func TestDecodeNestedCustomerAndVendorPrice(t *testing.T) {
	o := decode(t, `{
		"order_id": "o-7",
		"status": "ASSIGNED",
		"vendor_price": "1200",
		"customer": {"first_name": "Ravi", "last_name": "K", "mobile": "123"},
		"driver": {"id": 5},
		"car_id": 9
	}`)
	if o.ID != "o-7" {
		t.Fatalf("ID = %q", o.ID)
	}
	if o.IsOpen() {
		t.Fatal("assigned order must not be open")
	}
	if got := o.RequiredAmount(); got != types.Major(1200) {
		t.Fatalf("RequiredAmount = %v", got)
	}
	if o.CustomerName != "Ravi K" || o.CustomerPhone != "123" {
		t.Fatalf("customer = %q %q", o.CustomerName, o.CustomerPhone)
	}
	if o.DriverID != "5" || o.CarID != "9" {
		t.Fatalf("driver/car = %q/%q", o.DriverID, o.CarID)
	}
}

func TestRequiredAmountWithoutPrices(t *testing.T) {
	o := decode(t, `{"id": "1", "estimated_price": null}`)
	if o.HasPrice() {
		t.Fatal("expected no price")
	}
	if !o.RequiredAmount().IsZero() {
		t.Fatalf("RequiredAmount = %v, want zero", o.RequiredAmount())
	}
	if !o.IsOpen() {
		t.Fatal("empty trip status means open")
	}
}
