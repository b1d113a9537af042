// README: API gateway; wires the gin engine to the coordination services and runs it.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fleetclaim/internal/http/handlers"
	"fleetclaim/internal/infra"
	"fleetclaim/internal/modules/acceptance"
	"fleetclaim/internal/modules/assignment"
	"fleetclaim/internal/modules/directory"
	"fleetclaim/internal/modules/eligibility"
)

type ServerDeps struct {
	Directory   *directory.Service
	Eligibility *eligibility.Service
	Assignments *assignment.Service
	Coordinator *acceptance.Coordinator
	Audit       handlers.AuditReader
	Verifier    infra.TokenVerifier
	Log         logrus.FieldLogger
}

type Server struct {
	deps ServerDeps
	log  logrus.FieldLogger
}

func NewServer(deps ServerDeps) *Server {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{deps: deps, log: log}
}

func (s *Server) Routes() *gin.Engine {
	return NewRouter(s.deps, s.log)
}

// Run serves addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
