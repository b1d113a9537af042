// README: Assignment aggregate, status definitions and the transition table.
package assignment

import (
	"encoding/json"
	"strings"
	"time"

	"fleetclaim/internal/types"
)

// Status is the fine-grained assignment_status.
type Status string

const (
	StatusNone      Status = ""
	StatusPending   Status = "PENDING"
	StatusAssigned  Status = "ASSIGNED"
	StatusDriving   Status = "DRIVING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Stage is the coarse status the authority also reports.
type Stage string

const (
	StageAssigned   Stage = "assigned"
	StageInProgress Stage = "in_progress"
	StageCompleted  Stage = "completed"
	StageCancelled  Stage = "cancelled"
)

type Assignment struct {
	ID         types.ID   `json:"id"`
	OrderID    types.ID   `json:"order_id"`
	DriverID   types.ID   `json:"driver_id,omitempty"`
	CarID      types.ID   `json:"car_id,omitempty"`
	AssignedBy types.ID   `json:"assigned_by,omitempty"`
	Stage      Stage      `json:"status"`
	Status     Status     `json:"assignment_status"`
	Notes      string     `json:"notes,omitempty"`
	AssignedAt time.Time  `json:"assigned_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// AllowedTransitions represents the assignment state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:  {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusDriving, StatusCancelled},
	StatusDriving:  {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusDriving, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus accepts either casing of a fine-grained status.
func ParseStatus(v string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(v)))
}

// StageFor maps a fine-grained status to the coarse stage.
func StageFor(s Status) Stage {
	switch s {
	case StatusDriving:
		return StageInProgress
	case StatusCompleted:
		return StageCompleted
	case StatusCancelled:
		return StageCancelled
	}
	return StageAssigned
}

func (s Stage) Valid() bool {
	switch s {
	case StageAssigned, StageInProgress, StageCompleted, StageCancelled:
		return true
	}
	return false
}

// Bound reports whether a driver and car are attached.
func (a *Assignment) Bound() bool {
	return a.DriverID != "" && a.CarID != ""
}

// Active reports whether the assignment still holds its order.
func (a *Assignment) Active() bool {
	return a.Status != StatusCancelled
}

type wireAssignment struct {
	ID               types.ID `json:"id"`
	AssignmentID     types.ID `json:"assignment_id"`
	OrderID          types.ID `json:"order_id"`
	Order            types.ID `json:"order"`
	DriverID         types.ID `json:"driver_id"`
	Driver           types.ID `json:"driver"`
	CarID            types.ID `json:"car_id"`
	Car              types.ID `json:"car"`
	AssignedBy       types.ID `json:"assigned_by"`
	Status           string   `json:"status"`
	AssignmentStatus string   `json:"assignment_status"`
	Notes            *string  `json:"notes"`
	AssignedAt       string   `json:"assigned_at"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
	ExpiresAt        string   `json:"expires_at"`
}

// UnmarshalJSON normalizes the two status fields. Some endpoints put the fine-grained
// value into "status"; when assignment_status is missing it is derived from the stage.
func (a *Assignment) UnmarshalJSON(b []byte) error {
	var w wireAssignment
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*a = Assignment{
		ID:         types.FirstID(w.ID, w.AssignmentID),
		OrderID:    types.FirstID(w.OrderID, w.Order),
		DriverID:   types.FirstID(w.DriverID, w.Driver),
		CarID:      types.FirstID(w.CarID, w.Car),
		AssignedBy: w.AssignedBy,
	}
	if w.Notes != nil {
		a.Notes = *w.Notes
	}

	fine := ParseStatus(w.AssignmentStatus)
	coarse := Stage(strings.ToLower(strings.TrimSpace(w.Status)))
	if !fine.Valid() && !coarse.Valid() {
		if s := ParseStatus(w.Status); s.Valid() {
			fine = s
			coarse = ""
		}
	}
	if !fine.Valid() {
		switch coarse {
		case StageInProgress:
			fine = StatusDriving
		case StageCompleted:
			fine = StatusCompleted
		case StageCancelled:
			fine = StatusCancelled
		default:
			fine = StatusPending
			if a.Bound() {
				fine = StatusAssigned
			}
		}
	}
	if !coarse.Valid() {
		coarse = StageFor(fine)
	}
	a.Status = fine
	a.Stage = coarse

	if t, ok := parseTime(w.AssignedAt); ok {
		a.AssignedAt = t
	} else if t, ok := parseTime(w.CreatedAt); ok {
		a.AssignedAt = t
	}
	if t, ok := parseTime(w.UpdatedAt); ok {
		a.UpdatedAt = t
	}
	if t, ok := parseTime(w.ExpiresAt); ok {
		a.ExpiresAt = &t
	}
	return nil
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
