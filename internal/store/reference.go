package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Reference is a relation field as returned by the content store. Depending
// on the query, the store serializes a relation as a bare id (string or
// number) or as the expanded related record. Reference decodes either shape;
// Key is the one accessor call sites use.
type Reference struct {
	ID       string
	Expanded map[string]interface{}
}

// Key returns the related record's id regardless of which shape was decoded.
// It is empty when the relation is unset.
func (r Reference) Key() string {
	return r.ID
}

// IsZero reports whether the relation is unset.
func (r Reference) IsZero() bool {
	return r.ID == "" && r.Expanded == nil
}

// UnmarshalJSON accepts null, a string id, a numeric id, or an expanded
// record object carrying an "id" field.
func (r *Reference) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*r = Reference{}

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &r.ID)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		r.Expanded = make(map[string]interface{}, len(obj))
		for k, v := range obj {
			var val interface{}
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("decoding expanded relation field %q: %w", k, err)
			}
			r.Expanded[k] = val
		}
		if raw, ok := obj["id"]; ok {
			r.ID = rawID(raw)
		}
		return nil
	default:
		// Numeric id: keep the literal digits to avoid float round-trips.
		r.ID = string(data)
		return nil
	}
}

// MarshalJSON writes the relation back as a bare id, or null when unset.
func (r Reference) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(r.Key())
}

func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}
	return string(raw)
}
