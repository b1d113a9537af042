package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"fleetclaim/internal/fault"
)

var listKeys = []string{"data", "results", "drivers", "cars", "assignments", "items"}

// unwrapList accepts a bare JSON array or an object wrapping one under a known key.
// Paginated {"results": [...]} and {"data": {"results": [...]}} are both handled.
func unwrapList(op string, body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	if body[0] == '[' {
		var out []json.RawMessage
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("%s decode: %w", op, err)
		}
		return out, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%s decode: %w", op, err)
	}
	for _, k := range listKeys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		return unwrapList(op, raw)
	}
	return nil, fmt.Errorf("%s decode: no list in response", op)
}

// unwrapObject returns the payload object, looking through a "data" envelope.
func unwrapObject(body []byte) json.RawMessage {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		d := bytes.TrimSpace(env.Data)
		if len(d) > 0 && d[0] == '{' {
			return env.Data
		}
	}
	return body
}

// checkSuccessFlag turns a 2xx {"success": false, ...} body into the 400 it stands for.
func checkSuccessFlag(op string, body []byte) error {
	var env struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Success == nil || *env.Success {
		return nil
	}
	return fault.FromResponse(op, http.StatusBadRequest, body)
}

func decodeObject(op string, body []byte, v any) error {
	if err := json.Unmarshal(unwrapObject(body), v); err != nil {
		return fmt.Errorf("%s decode: %w", op, err)
	}
	return nil
}
