package marketplace

import (
	"encoding/json"
	"time"
)

// retryBase/retryMaxAttempts are the shared backoff parameters adapters
// pass to RetryTransient, per spec §4.1's "exponential backoff starting
// at 1s, up to 3 attempts" retry contract.
const (
	retryBase        = time.Second
	retryMaxAttempts = 3
)

// decodeJSONAny decodes a response body whose top-level shape varies
// across marketplaces (array or object) into an untyped value.
func decodeJSONAny(body []byte) (any, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeJSONObject decodes a response body expected to be a single JSON
// object into a field map.
func decodeJSONObject(body []byte) (map[string]any, error) {
	var v map[string]any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}
