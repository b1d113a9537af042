// README: Tests for the Firebase auth middleware and the request plumbing around it.
package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fleetclaim/internal/http/middleware"
	"fleetclaim/internal/infra"
	"fleetclaim/internal/session"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

func newTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(verifier))
	r.GET("/test", func(c *gin.Context) {
		sess, _ := session.From(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"uid":   middleware.CallerUID(c),
			"org":   sess.OrganizationID,
			"token": sess.Token,
		})
	})
	return r
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.FirebaseToken{UID: "user1"}})
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.FirebaseToken{UID: "user1"}})
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Token sometoken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	r := newTestRouter(&stubVerifier{err: errors.New("bad token")})
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer invalidtoken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "auth_expired") {
		t.Errorf("expected auth_expired kind, got %s", w.Body.String())
	}
}

func TestAuth_ValidToken_SessionPopulated(t *testing.T) {
	token := &infra.FirebaseToken{
		UID:       "owner123",
		Claims:    map[string]interface{}{"org_id": "fleet-9"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	r := newTestRouter(&stubVerifier{token: token})
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer validtoken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"owner123", "fleet-9", "validtoken"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in body, got %s", want, body)
		}
	}
}

func TestAuth_EmptyUIDRejected(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.FirebaseToken{}})
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer validtoken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, middleware.RequestIDFrom(c)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc" || w.Header().Get(middleware.RequestIDHeader) != "abc" {
		t.Errorf("request id not propagated: body=%q header=%q", w.Body.String(), w.Header().Get(middleware.RequestIDHeader))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if len(w.Body.String()) != 36 {
		t.Errorf("expected generated uuid, got %q", w.Body.String())
	}
}

func TestRecoveryAndLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(log), middleware.Recovery(log))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	out, _ := io.ReadAll(&buf)
	if !strings.Contains(string(out), "panic recovered") || !strings.Contains(string(out), `"route":"/boom"`) {
		t.Errorf("unexpected log output: %s", out)
	}
}
