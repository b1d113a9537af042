package types

import (
	"bytes"
	"encoding/json"
	"strconv"
)

type ID string

func (id ID) String() string { return string(id) }

func (id ID) Empty() bool { return id == "" }

// UnmarshalJSON accepts ids sent as strings, integers, or nested objects carrying an
// "id" field. The remote authority mixes all three depending on the endpoint.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	case b[0] == '{':
		var obj struct {
			ID ID `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*id = obj.ID
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		if i, err := n.Int64(); err == nil {
			*id = ID(strconv.FormatInt(i, 10))
			return nil
		}
		*id = ID(n.String())
		return nil
	}
}

// FirstID returns the first non-empty id.
func FirstID(ids ...ID) ID {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}
