package types

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ExternalID is an identifier assigned by the MIS backend. The backend emits
// numeric ids while some payloads quote them, so both forms are accepted and
// the value is always carried as a string.
type ExternalID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ExternalID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = ExternalID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*id = ExternalID(n.String())
	return nil
}

// MarshalJSON emits numeric ids unquoted so the backend can bind them to
// integer fields.
func (id ExternalID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if isNumeric(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ExternalID) String() string {
	return string(id)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '-' && i == 0 && len(s) > 1 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
