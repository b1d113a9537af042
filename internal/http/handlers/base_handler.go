// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetclaim/internal/fault"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Kind      fault.Kind        `json:"kind,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Required  string            `json:"required,omitempty"`
	Available string            `json:"available,omitempty"`
	From      string            `json:"from,omitempty"`
	To        string            `json:"to,omitempty"`
	// Partial carries what was already done when a multi-step operation failed late,
	// e.g. an order claimed but not yet bound.
	Partial any `json:"partial,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// statusFor maps an error kind back to the status the operator API answers with.
func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.KindAuthExpired:
		return http.StatusUnauthorized
	case fault.KindForbidden:
		return http.StatusForbidden
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConflict, fault.KindInvalidTransition:
		return http.StatusConflict
	case fault.KindValidation:
		return http.StatusUnprocessableEntity
	case fault.KindInsufficientBalance:
		return http.StatusPaymentRequired
	case fault.KindRejected:
		return http.StatusBadRequest
	case fault.KindNetwork, fault.KindServer:
		return http.StatusBadGateway
	case fault.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeFault(c *gin.Context, err error, partial any) {
	resp := errorResponse{Error: fault.UserMessage(err), Partial: partial}
	if fe, ok := fault.As(err); ok {
		resp.Kind = fe.Kind
		resp.Fields = fe.Fields
		resp.From, resp.To = fe.From, fe.To
		if fe.Kind == fault.KindInsufficientBalance {
			resp.Required = fe.Required.String()
			resp.Available = fe.Available.String()
		}
	}
	_ = c.Error(err)
	writeJSON(c, statusFor(resp.Kind), resp)
}

// bindOptionalJSON decodes a JSON body when one was sent. An empty body is fine.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		writeFault(c, &fault.Error{Kind: fault.KindValidation, Op: "decode request", Message: "invalid json"}, nil)
		return false
	}
	return true
}
