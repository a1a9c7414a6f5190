package models

import (
	"bytes"
	"encoding/json"
)

// OptionalString tells an omitted JSON field apart from an explicit null.
// Set is false when the field was absent; Set with a nil Value means clear.
type OptionalString struct {
	Set   bool
	Value *string
}

// SomeString returns a set optional holding v.
func SomeString(v string) OptionalString {
	return OptionalString{Set: true, Value: &v}
}

// NullString returns a set optional that clears the stored value.
func NullString() OptionalString {
	return OptionalString{Set: true}
}

// UnmarshalJSON only runs for fields present in the payload.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON writes the value or null.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// Apply returns the value to store given the current one.
func (o OptionalString) Apply(current *string) *string {
	if !o.Set {
		return current
	}
	return o.Value
}
