package main

import (
	"bytes"
	"encoding/json"
)

func UnmarshalJSON[T any](data []byte) (T, error) {
	var parsed T
	err := json.Unmarshal(data, &parsed)
	return parsed, err
}

// isFalsyJSON reports whether raw is missing or one of the empty JSON values
// (null, false, 0, "", [], {}).
func isFalsyJSON(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return false
	}
	switch compact.String() {
	case "null", "false", `""`, "[]", "{}":
		return true
	}
	var n float64
	if err := json.Unmarshal(compact.Bytes(), &n); err == nil {
		return n == 0
	}
	return false
}

func isNullJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
