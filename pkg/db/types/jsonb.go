package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB holds a raw JSON document. It is bound as text so Postgres casts it
// into jsonb columns regardless of the protocol mode, and scans from either
// text or bytes.
type JSONB json.RawMessage

// NewJSONB marshals v into a JSONB value.
func NewJSONB(v any) (JSONB, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("JSONB: marshal: %w", err)
	}
	return JSONB(raw), nil
}

func (j *JSONB) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case string:
		*j = JSONB(v)
	case []byte:
		buf := make([]byte, len(v))
		copy(buf, v)
		*j = JSONB(buf)
	default:
		return fmt.Errorf("JSONB: unsupported Scan type %T", src)
	}
	return nil
}

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("JSONB: invalid document")
	}
	return string(j), nil
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	*j = JSONB(buf)
	return nil
}

// Decode unmarshals the document into dest.
func (j JSONB) Decode(dest any) error {
	if len(j) == 0 {
		return nil
	}
	return json.Unmarshal(j, dest)
}
