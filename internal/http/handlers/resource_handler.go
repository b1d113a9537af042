// README: Resource handlers list claimable drivers and cars and answer availability checks.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetclaim/internal/modules/directory"
	"fleetclaim/internal/types"
)

type ResourceHandler struct {
	dir *directory.Service
}

func NewResourceHandler(dir *directory.Service) *ResourceHandler {
	return &ResourceHandler{dir: dir}
}

func (h *ResourceHandler) ListDrivers(c *gin.Context) {
	drivers, err := h.dir.ListAvailableDrivers(c.Request.Context())
	if err != nil {
		writeFault(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": drivers, "count": len(drivers)})
}

func (h *ResourceHandler) ListCars(c *gin.Context) {
	cars, err := h.dir.ListAvailableCars(c.Request.Context())
	if err != nil {
		writeFault(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"cars": cars, "count": len(cars)})
}

func (h *ResourceHandler) DriverAvailability(c *gin.Context) {
	id := types.ID(c.Param("id"))
	ok, err := h.dir.DriverAvailable(c.Request.Context(), id)
	if err != nil {
		writeFault(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver_id": id, "is_available": ok})
}

func (h *ResourceHandler) CarAvailability(c *gin.Context) {
	id := types.ID(c.Param("id"))
	ok, err := h.dir.CarAvailable(c.Request.Context(), id)
	if err != nil {
		writeFault(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"car_id": id, "is_available": ok})
}
