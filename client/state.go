package client

import (
	"dario.cat/mergo"
	json "github.com/goccy/go-json"
)

// cloneState deep-copies a state document via a JSON round trip, so the
// copy shares no references with the original. Values must therefore be
// JSON-serializable; non-serializable state is a programming error
// surfaced as a returned error.
func cloneState(m map[string]any) (map[string]any, error) {
	if len(m) == 0 {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeState deep-merges patch into dst, overriding existing values.
func mergeState(dst map[string]any, patch map[string]any) error {
	return mergo.Merge(&dst, patch, mergo.WithOverride)
}
