package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexibleString is a text field that also accepts a bare JSON number.
// Spreadsheet exports send identifiers such as DNI, phone or postal code as
// numbers; the digits are kept exactly as written.
type FlexibleString string

// UnmarshalJSON accepts a string, a number or null (which leaves the value empty).
func (f *FlexibleString) UnmarshalJSON(b []byte) error {
	s, err := FlexibleStringValue(b)
	if err != nil {
		return err
	}
	*f = FlexibleString(s)
	return nil
}

// String returns the underlying text.
func (f FlexibleString) String() string {
	return string(f)
}

// FlexibleStringValue converts a raw JSON string or number to its text.
// Numbers keep their literal form, so 30111222 stays "30111222" and 007 is rejected
// by the decoder rather than silently rewritten. Returns "" for null or empty input.
func FlexibleStringValue(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("expected string or number: %w", err)
	}
	num, ok := v.(json.Number)
	if !ok {
		return "", fmt.Errorf("expected string or number, got %s", raw)
	}
	return num.String(), nil
}
