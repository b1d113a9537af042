// README: Assignment handlers: reads, resource binding, and status transitions.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetclaim/internal/http/middleware"
	"fleetclaim/internal/modules/acceptance"
	"fleetclaim/internal/modules/assignment"
	"fleetclaim/internal/types"
)

type AssignmentHandler struct {
	coord       *acceptance.Coordinator
	assignments *assignment.Service
}

func NewAssignmentHandler(coord *acceptance.Coordinator, asg *assignment.Service) *AssignmentHandler {
	return &AssignmentHandler{coord: coord, assignments: asg}
}

type bindReq struct {
	DriverID string `json:"driver_id"`
	CarID    string `json:"car_id"`
}

type statusReq struct {
	AssignmentStatus string `json:"assignment_status"`
	Status           string `json:"status"`
}

func (h *AssignmentHandler) Get(c *gin.Context) {
	a, err := h.assignments.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeFault(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, a)
}

// ByOwner lists assignments for owner_id, defaulting to the caller's organization.
func (h *AssignmentHandler) ByOwner(c *gin.Context) {
	owner := types.ID(c.Query("owner_id"))
	if owner == "" {
		owner = middleware.CallerSession(c).Owner()
	}
	list, err := h.assignments.ByOwner(c.Request.Context(), owner)
	if err != nil {
		writeFault(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"owner_id": owner, "assignments": list})
}

// BindResources binds the given driver and car. Omitted ids are picked by the fallback
// selector.
func (h *AssignmentHandler) BindResources(c *gin.Context) {
	var req bindReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.coord.BindResources(c.Request.Context(), acceptance.BindCommand{
		AssignmentID: types.ID(c.Param("id")),
		DriverID:     types.ID(req.DriverID),
		CarID:        types.ID(req.CarID),
	})
	writeResult(c, http.StatusOK, res, err)
}

func (h *AssignmentHandler) UpdateStatus(c *gin.Context) {
	var req statusReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	raw := req.AssignmentStatus
	if raw == "" {
		raw = req.Status
	}
	res, err := h.coord.Transition(c.Request.Context(), acceptance.TransitionCommand{
		AssignmentID: types.ID(c.Param("id")),
		To:           assignment.ParseStatus(raw),
	})
	writeResult(c, http.StatusOK, res, err)
}
