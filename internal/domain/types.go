package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	bytes, err := scanBytes(value, "StringArray")
	if err != nil || bytes == nil {
		*a = StringArray{}
		return err
	}
	return json.Unmarshal(bytes, a)
}

// ResourceRef is a persisted reference to one publication resource.
type ResourceRef struct {
	URL            string   `json:"url"`
	Rel            []string `json:"rel,omitempty"`
	EncodingFormat string   `json:"encodingFormat"`
}

// ResourceList stores an ordered resource list as JSON.
type ResourceList []ResourceRef

// Value implements the driver.Valuer interface for database serialization.
func (l ResourceList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (l *ResourceList) Scan(value interface{}) error {
	bytes, err := scanBytes(value, "ResourceList")
	if err != nil || bytes == nil {
		*l = ResourceList{}
		return err
	}
	return json.Unmarshal(bytes, l)
}

func scanBytes(value interface{}, typ string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("failed to scan " + typ)
	}
}
