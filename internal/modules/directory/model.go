// README: Canonical driver and car records plus the claimable predicate.
package directory

import "fleetclaim/internal/types"

type DriverStatus string

const (
	DriverOnline     DriverStatus = "ONLINE"
	DriverProcessing DriverStatus = "PROCESSING"
	DriverDriving    DriverStatus = "DRIVING"
	DriverBlocked    DriverStatus = "BLOCKED"
	DriverOffline    DriverStatus = "OFFLINE"
)

type CarStatus string

const (
	CarOnline     CarStatus = "ONLINE"
	CarProcessing CarStatus = "PROCESSING"
	CarActive     CarStatus = "ACTIVE"
	CarDriving    CarStatus = "DRIVING"
	CarBlocked    CarStatus = "BLOCKED"
	CarOffline    CarStatus = "OFFLINE"
)

// ClaimableDriverStatuses and ClaimableCarStatuses are the only statuses a new claim may use.
var (
	ClaimableDriverStatuses = map[DriverStatus]bool{DriverOnline: true, DriverProcessing: true}
	ClaimableCarStatuses    = map[CarStatus]bool{CarOnline: true, CarProcessing: true, CarActive: true}
)

type Driver struct {
	ID                types.ID     `json:"id"`
	OwnerID           types.ID     `json:"owner_id,omitempty"`
	Name              string       `json:"name,omitempty"`
	Phone             string       `json:"phone,omitempty"`
	Status            DriverStatus `json:"status"`
	IsAvailable       *bool        `json:"is_available,omitempty"`
	CurrentAssignment types.ID     `json:"current_assignment,omitempty"`
}

type Car struct {
	ID                types.ID  `json:"id"`
	OwnerID           types.ID  `json:"owner_id,omitempty"`
	Registration      string    `json:"registration,omitempty"`
	Model             string    `json:"model,omitempty"`
	Status            CarStatus `json:"status"`
	IsAvailable       *bool     `json:"is_available,omitempty"`
	CurrentAssignment types.ID  `json:"current_assignment,omitempty"`
}

// Claimable: no current assignment, not explicitly unavailable, status in the claimable set.
func (d Driver) Claimable() bool {
	if d.CurrentAssignment != "" {
		return false
	}
	if d.IsAvailable != nil && !*d.IsAvailable {
		return false
	}
	return ClaimableDriverStatuses[d.Status]
}

func (c Car) Claimable() bool {
	if c.CurrentAssignment != "" {
		return false
	}
	if c.IsAvailable != nil && !*c.IsAvailable {
		return false
	}
	return ClaimableCarStatuses[c.Status]
}
