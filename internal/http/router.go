// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"fleetclaim/internal/http/handlers"
	"fleetclaim/internal/http/middleware"
)

func NewRouter(deps ServerDeps, log logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(log), middleware.Recovery(log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	resources := handlers.NewResourceHandler(deps.Directory)
	api.GET("/resources/drivers", resources.ListDrivers)
	api.GET("/resources/cars", resources.ListCars)
	api.GET("/resources/drivers/:id/availability", resources.DriverAvailability)
	api.GET("/resources/cars/:id/availability", resources.CarAvailability)

	orders := handlers.NewOrderHandler(deps.Coordinator, deps.Eligibility, deps.Assignments, deps.Audit)
	api.GET("/orders/:id/eligibility", orders.Eligibility)
	api.POST("/orders/:id/accept", orders.Accept)
	api.POST("/orders/:id/assign", orders.Assign)
	api.POST("/orders/:id/accept-manual", orders.AcceptManual)
	api.GET("/orders/:id/assignments", orders.Assignments)
	api.GET("/orders/:id/audit", orders.AuditTrail)

	assignments := handlers.NewAssignmentHandler(deps.Coordinator, deps.Assignments)
	api.GET("/assignments", assignments.ByOwner)
	api.GET("/assignments/:id", assignments.Get)
	api.PATCH("/assignments/:id/resources", assignments.BindResources)
	api.PATCH("/assignments/:id/status", assignments.UpdateStatus)

	return r
}
