// README: Order handlers: eligibility, claim paths, and per-order history.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleetclaim/internal/fault"
	"fleetclaim/internal/http/middleware"
	"fleetclaim/internal/modules/acceptance"
	"fleetclaim/internal/modules/assignment"
	"fleetclaim/internal/modules/audit"
	"fleetclaim/internal/modules/eligibility"
	"fleetclaim/internal/types"
)

// AuditReader is satisfied by *audit.Store. Nil when no database is configured.
type AuditReader interface {
	ByOrder(ctx context.Context, orderID types.ID, limit int) ([]audit.Entry, error)
}

type OrderHandler struct {
	coord       *acceptance.Coordinator
	eligibility *eligibility.Service
	assignments *assignment.Service
	audit       AuditReader
}

func NewOrderHandler(coord *acceptance.Coordinator, elig *eligibility.Service, asg *assignment.Service, trail AuditReader) *OrderHandler {
	return &OrderHandler{coord: coord, eligibility: elig, assignments: asg, audit: trail}
}

type acceptReq struct {
	Notes string `json:"notes"`
}

type assignReq struct {
	DriverID string `json:"driver_id"`
	CarID    string `json:"car_id"`
	Notes    string `json:"notes"`
}

func (h *OrderHandler) Eligibility(c *gin.Context) {
	id := types.ID(c.Param("id"))
	res, err := h.eligibility.CheckBalance(c.Request.Context(), id)
	if err != nil {
		writeFault(c, err, nil)
		return
	}
	body := gin.H{
		"order_id":   id,
		"sufficient": res.Sufficient,
		"required":   res.Required.String(),
		"available":  res.Available.String(),
		"degraded":   res.Degraded,
	}
	if err := res.Err("check balance"); err != nil {
		body["message"] = fault.UserMessage(err)
	}
	writeJSON(c, http.StatusOK, body)
}

func (h *OrderHandler) Accept(c *gin.Context) {
	var req acceptReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.coord.AcceptOrder(c.Request.Context(), acceptance.AcceptCommand{
		OrderID:    types.ID(c.Param("id")),
		OperatorID: types.ID(middleware.CallerUID(c)),
		Notes:      req.Notes,
	})
	writeResult(c, http.StatusCreated, res, err)
}

func (h *OrderHandler) Assign(c *gin.Context) {
	var req assignReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.coord.AssignDirect(c.Request.Context(), acceptance.AssignCommand{
		OrderID:    types.ID(c.Param("id")),
		OperatorID: types.ID(middleware.CallerUID(c)),
		DriverID:   types.ID(req.DriverID),
		CarID:      types.ID(req.CarID),
		Notes:      req.Notes,
	})
	writeResult(c, http.StatusCreated, res, err)
}

func (h *OrderHandler) AcceptManual(c *gin.Context) {
	var req acceptReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.coord.AcceptManual(c.Request.Context(), acceptance.AcceptCommand{
		OrderID:    types.ID(c.Param("id")),
		OperatorID: types.ID(middleware.CallerUID(c)),
		Notes:      req.Notes,
	})
	writeResult(c, http.StatusCreated, res, err)
}

func (h *OrderHandler) Assignments(c *gin.Context) {
	list, err := h.assignments.ByOrder(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeFault(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"assignments": list})
}

func (h *OrderHandler) AuditTrail(c *gin.Context) {
	if h.audit == nil {
		writeError(c, http.StatusNotImplemented, "audit trail is not configured")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.audit.ByOrder(c.Request.Context(), types.ID(c.Param("id")), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		_ = c.Error(err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"entries": entries})
}

// writeResult renders a coordinator outcome. A failed operation that still produced a
// result (claimed but not bound) returns that result as the partial payload.
func writeResult(c *gin.Context, status int, res *acceptance.Result, err error) {
	if err != nil {
		var partial any
		if res != nil {
			partial = res
		}
		writeFault(c, err, partial)
		return
	}
	writeJSON(c, status, res)
}
