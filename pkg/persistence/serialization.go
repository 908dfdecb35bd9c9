package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalLedgerState serializes LedgerState to JSON bytes.
func MarshalLedgerState(ls *LedgerState) ([]byte, error) {
	if ls == nil {
		return nil, fmt.Errorf("cannot marshal nil LedgerState")
	}

	return json.Marshal(ls)
}

// UnmarshalLedgerState deserializes LedgerState from JSON bytes.
func UnmarshalLedgerState(data []byte) (*LedgerState, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var ls LedgerState
	if err := json.Unmarshal(data, &ls); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to LedgerState: %w", err)
	}

	return &ls, nil
}
