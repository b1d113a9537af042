// README: Local audit trail of coordination decisions. The authority stays the source of
// truth for assignments; this only records what this service attempted and how it ended.
package audit

import (
	"embed"
	"time"

	"github.com/google/uuid"

	"fleetclaim/internal/types"
)

// Migrations holds the schema for the audit table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

type Operation string

const (
	OpAccept       Operation = "accept"
	OpAssignDirect Operation = "assign_direct"
	OpAcceptManual Operation = "accept_manual"
	OpBind         Operation = "bind"
	OpTransition   Operation = "transition"
)

type Entry struct {
	ID           uuid.UUID `json:"id"`
	OccurredAt   time.Time `json:"occurred_at"`
	Operation    Operation `json:"operation"`
	OrderID      types.ID  `json:"order_id,omitempty"`
	AssignmentID types.ID  `json:"assignment_id,omitempty"`
	OperatorID   types.ID  `json:"operator_id,omitempty"`
	DriverID     types.ID  `json:"driver_id,omitempty"`
	CarID        types.ID  `json:"car_id,omitempty"`
	Outcome      string    `json:"outcome"`
	Detail       string    `json:"detail,omitempty"`
}
