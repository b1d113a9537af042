// README: Read-only order view as served by the remote authority, plus display summary.
package order

import (
	"encoding/json"
	"strings"
	"time"

	"fleetclaim/internal/types"
)

type TripStatus string

const (
	TripOpen       TripStatus = ""
	TripPending    TripStatus = "PENDING"
	TripAvailable  TripStatus = "AVAILABLE"
	TripOpenStatus TripStatus = "OPEN"
	TripAssigned   TripStatus = "ASSIGNED"
	TripDriving    TripStatus = "DRIVING"
	TripCompleted  TripStatus = "COMPLETED"
	TripCancelled  TripStatus = "CANCELLED"
)

type Order struct {
	ID             types.ID
	TripStatus     TripStatus
	EstimatedPrice *types.Money
	VendorPrice    *types.Money
	DriverID       types.ID
	CarID          types.ID

	CustomerName  string
	CustomerPhone string
	Pickup        string
	Dropoff       string
	TripType      string
	CarType       string
	PickupAt      *time.Time
}

// IsOpen reports whether the order still looks claimable from this read. The remote
// authority has the final word.
func (o *Order) IsOpen() bool {
	switch o.TripStatus {
	case TripOpen, TripPending, TripAvailable, TripOpenStatus:
		return true
	}
	return false
}

// HasPrice reports whether either price field was present.
func (o *Order) HasPrice() bool {
	return o.EstimatedPrice != nil || o.VendorPrice != nil
}

// RequiredAmount is the amount the operator's wallet must cover: estimated_price if
// present, else vendor_price, else zero.
func (o *Order) RequiredAmount() types.Money {
	switch {
	case o.EstimatedPrice != nil:
		return *o.EstimatedPrice
	case o.VendorPrice != nil:
		return *o.VendorPrice
	}
	return types.NewMoney(0)
}

// Summary holds the order and customer fields shown next to an assignment.
type Summary struct {
	OrderID       types.ID    `json:"order_id"`
	CustomerName  string      `json:"customer_name,omitempty"`
	CustomerPhone string      `json:"customer_phone,omitempty"`
	Pickup        string      `json:"pickup,omitempty"`
	Dropoff       string      `json:"dropoff,omitempty"`
	TripType      string      `json:"trip_type,omitempty"`
	CarType       string      `json:"car_type,omitempty"`
	PickupAt      *time.Time  `json:"pickup_at,omitempty"`
	Price         types.Money `json:"-"`
	PriceDisplay  string      `json:"price,omitempty"`
	TripStatus    TripStatus  `json:"trip_status,omitempty"`
}

func (o *Order) Summary() Summary {
	s := Summary{
		OrderID:       o.ID,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		Pickup:        o.Pickup,
		Dropoff:       o.Dropoff,
		TripType:      o.TripType,
		CarType:       o.CarType,
		PickupAt:      o.PickupAt,
		TripStatus:    o.TripStatus,
	}
	if o.HasPrice() {
		s.Price = o.RequiredAmount()
		s.PriceDisplay = s.Price.String()
	}
	return s
}

type wireCustomer struct {
	Name      string `json:"name"`
	FullName  string `json:"full_name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Mobile    string `json:"mobile"`
}

type wireOrder struct {
	ID             types.ID        `json:"id"`
	OrderID        types.ID        `json:"order_id"`
	TripStatus     string          `json:"trip_status"`
	Status         string          `json:"status"`
	EstimatedPrice json.RawMessage `json:"estimated_price"`
	VendorPrice    json.RawMessage `json:"vendor_price"`
	DriverID       types.ID        `json:"driver_id"`
	Driver         types.ID        `json:"driver"`
	CarID          types.ID        `json:"car_id"`
	Car            types.ID        `json:"car"`

	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone"`
	Customer      *wireCustomer `json:"customer"`

	PickupLocation  string `json:"pickup_location"`
	Pickup          string `json:"pickup"`
	DropLocation    string `json:"drop_location"`
	DropoffLocation string `json:"dropoff_location"`
	TripType        string `json:"trip_type"`
	CarType         string `json:"car_type"`
	PickupDateTime  string `json:"pickup_datetime"`
	StartDate       string `json:"start_date"`
}

func (o *Order) UnmarshalJSON(b []byte) error {
	var w wireOrder
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*o = Order{
		ID:         types.FirstID(w.ID, w.OrderID),
		TripStatus: TripStatus(strings.ToUpper(strings.TrimSpace(firstString(w.TripStatus, w.Status)))),
		DriverID:   types.FirstID(w.DriverID, w.Driver),
		CarID:      types.FirstID(w.CarID, w.Car),
		Pickup:     firstString(w.PickupLocation, w.Pickup),
		Dropoff:    firstString(w.DropLocation, w.DropoffLocation),
		TripType:   w.TripType,
		CarType:    w.CarType,
	}
	if m, ok, err := types.ParseAmount(w.EstimatedPrice); err != nil {
		return err
	} else if ok {
		o.EstimatedPrice = &m
	}
	if m, ok, err := types.ParseAmount(w.VendorPrice); err != nil {
		return err
	} else if ok {
		o.VendorPrice = &m
	}

	o.CustomerName = w.CustomerName
	o.CustomerPhone = w.CustomerPhone
	if c := w.Customer; c != nil {
		full := strings.TrimSpace(c.FirstName + " " + c.LastName)
		o.CustomerName = firstString(o.CustomerName, c.FullName, c.Name, full)
		o.CustomerPhone = firstString(o.CustomerPhone, c.Phone, c.Mobile)
	}
	if ts := firstString(w.PickupDateTime, w.StartDate); ts != "" {
		if t, ok := parseTime(ts); ok {
			o.PickupAt = &t
		}
	}
	return nil
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
