package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"fleetclaim/internal/types"
)

// wireResource is the union of every field name the authority uses for drivers and cars.
type wireResource struct {
	ID                types.ID        `json:"id"`
	DriverID          types.ID        `json:"driver_id"`
	CarID             types.ID        `json:"car_id"`
	Owner             types.ID        `json:"owner"`
	OwnerID           types.ID        `json:"owner_id"`
	Organization      types.ID        `json:"organization"`
	VehicleOwner      types.ID        `json:"vehicle_owner"`
	DriverStatus      string          `json:"driver_status"`
	CarStatus         string          `json:"car_status"`
	Status            string          `json:"status"`
	IsAvailable       json.RawMessage `json:"is_available"`
	Available         json.RawMessage `json:"available"`
	CurrentAssignment types.ID        `json:"current_assignment"`
	FullName          string          `json:"full_name"`
	Name              string          `json:"name"`
	FirstName         string          `json:"first_name"`
	LastName          string          `json:"last_name"`
	Phone             string          `json:"phone"`
	PhoneNumber       string          `json:"phone_number"`
	Registration      string          `json:"registration"`
	RegistrationNo    string          `json:"registration_number"`
	Plate             string          `json:"plate_number"`
	Model             string          `json:"model"`
	CarModel          string          `json:"car_model"`
}

// normalized is the canonical shape both resource kinds share. Every raw record passes
// through normalize exactly once; consumers never see wire field names.
type normalized struct {
	id                types.ID
	owner             types.ID
	status            string
	isAvailable       *bool
	currentAssignment types.ID
	name              string
	phone             string
	registration      string
	model             string
}

type kind int

const (
	kindDriver kind = iota
	kindCar
)

func normalize(raw json.RawMessage, k kind) (normalized, error) {
	var w wireResource
	if err := json.Unmarshal(raw, &w); err != nil {
		return normalized{}, err
	}
	typedID := w.DriverID
	if k == kindCar {
		typedID = w.CarID
	}
	n := normalized{
		id:                types.FirstID(typedID, w.ID),
		owner:             types.FirstID(w.OwnerID, w.Owner, w.Organization, w.VehicleOwner),
		status:            strings.ToUpper(strings.TrimSpace(firstNonEmpty(w.DriverStatus, w.CarStatus, w.Status))),
		currentAssignment: w.CurrentAssignment,
		name:              firstNonEmpty(w.FullName, w.Name, strings.TrimSpace(w.FirstName+" "+w.LastName)),
		phone:             firstNonEmpty(w.Phone, w.PhoneNumber),
		registration:      firstNonEmpty(w.Registration, w.RegistrationNo, w.Plate),
		model:             firstNonEmpty(w.Model, w.CarModel),
	}
	for _, flag := range []json.RawMessage{w.IsAvailable, w.Available} {
		v, ok, err := parseFlag(flag)
		if err != nil {
			return normalized{}, err
		}
		if ok {
			n.isAvailable = &v
			break
		}
	}
	return n, nil
}

// NormalizeDriver maps one raw driver record to the canonical Driver.
func NormalizeDriver(raw json.RawMessage) (Driver, error) {
	n, err := normalize(raw, kindDriver)
	if err != nil {
		return Driver{}, fmt.Errorf("normalize driver: %w", err)
	}
	return Driver{
		ID:                n.id,
		OwnerID:           n.owner,
		Name:              n.name,
		Phone:             n.phone,
		Status:            DriverStatus(n.status),
		IsAvailable:       n.isAvailable,
		CurrentAssignment: n.currentAssignment,
	}, nil
}

// NormalizeCar maps one raw car record to the canonical Car.
func NormalizeCar(raw json.RawMessage) (Car, error) {
	n, err := normalize(raw, kindCar)
	if err != nil {
		return Car{}, fmt.Errorf("normalize car: %w", err)
	}
	return Car{
		ID:                n.id,
		OwnerID:           n.owner,
		Registration:      n.registration,
		Model:             n.model,
		Status:            CarStatus(n.status),
		IsAvailable:       n.isAvailable,
		CurrentAssignment: n.currentAssignment,
	}, nil
}

// parseFlag accepts true/false, "true"/"false" and 0/1. null or absent reports ok=false.
func parseFlag(raw json.RawMessage) (bool, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, false, nil
	}
	s := strings.Trim(string(raw), `"`)
	if s == "" {
		return false, false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, false, fmt.Errorf("availability flag %s: %w", raw, err)
	}
	return v, true, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
