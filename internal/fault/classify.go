package fault

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var conflictPhrases = []string{
	"already assigned",
	"active assignment",
	"already accepted",
	"already taken",
	"already claimed",
}

var transitionPhrases = []string{
	"transition",
	"cannot change status",
	"invalid status",
	"cannot move",
}

// FromResponse classifies a non-2xx response from the remote authority.
//
//	401 auth expired, 403 forbidden, 404 not found,
//	409 or 400 + "already assigned"/"active assignment" conflict,
//	400 + transition wording invalid transition, 422 validation,
//	5xx server, any other 4xx rejected.
func FromResponse(op string, status int, body []byte) *Error {
	msg, fields := parseBody(body)
	e := &Error{Op: op, Status: status, Message: msg}
	lower := strings.ToLower(msg)

	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuthExpired
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusConflict:
		e.Kind = KindConflict
	case status == http.StatusBadRequest && containsAny(lower, conflictPhrases):
		e.Kind = KindConflict
	case status == http.StatusBadRequest && containsAny(lower, transitionPhrases):
		e.Kind = KindInvalidTransition
	case status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
		e.Fields = fields
	case status >= 500:
		e.Kind = KindServer
	default:
		e.Kind = KindRejected
		e.Fields = fields
	}
	return e
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// parseBody pulls a human readable message and field errors out of the handful of error
// body shapes the authority emits: {"detail": ...}, {"message": ...}, {"error": ...},
// {"non_field_errors": [...]}, {"errors": {"field": ["msg"]}}, or a plain field map.
func parseBody(body []byte) (string, map[string]string) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		var list []string
		if err := json.Unmarshal(body, &list); err == nil {
			return strings.Join(list, "; "), nil
		}
		return truncate(trimmed, 300), nil
	}

	var msg string
	for _, key := range []string{"detail", "message", "error", "non_field_errors"} {
		if raw, ok := obj[key]; ok {
			msg = flatten(raw)
			delete(obj, key)
			break
		}
	}

	fields := map[string]string{}
	if raw, ok := obj["errors"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err == nil {
			for k, v := range nested {
				fields[k] = flatten(v)
			}
		} else if msg == "" {
			msg = flatten(raw)
		}
		delete(obj, "errors")
	}
	for k, v := range obj {
		if k == "status" || k == "code" || k == "success" {
			continue
		}
		if s := flatten(v); s != "" {
			fields[k] = s
		}
	}
	if msg == "" && len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		msg = fmt.Sprintf("%s: %s", keys[0], fields[keys[0]])
	}
	if len(fields) == 0 {
		fields = nil
	}
	return msg, fields
}

func flatten(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if p := flatten(item); p != "" {
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, "; ")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"detail", "message", "error"} {
			if v, ok := obj[key]; ok {
				return flatten(v)
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
