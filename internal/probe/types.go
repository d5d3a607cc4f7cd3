// Package probe reconciles declared vs. observed configuration state. Each
// probe invokes a detection script for one registry value and normalizes the
// script's JSON payload into a typed value/display/recommendation triple.
// Probe failures surface as per-value error lists and an unknown
// recommendation match, never as errors to the caller.
package probe

// ValueSnapshot is one raw path/value/display capture for multi-value
// detections.
type ValueSnapshot struct {
	Path    string `json:"path"`
	Value   any    `json:"value"`
	Display string `json:"display"`
}

// ValueState is the observation result for a single registry value.
type ValueState struct {
	Path                string          `json:"path"`
	ValueName           string          `json:"valueName"`
	LookupValueName     string          `json:"lookupValueName,omitempty"`
	ValueType           string          `json:"valueType"`
	SupportsCustomValue bool            `json:"supportsCustomValue"`
	CurrentValue        any             `json:"currentValue,omitempty"`
	CurrentDisplay      []string        `json:"currentDisplay,omitempty"`
	RecommendedValue    any             `json:"recommendedValue,omitempty"`
	RecommendedDisplay  string          `json:"recommendedDisplay,omitempty"`
	IsRecommended       *bool           `json:"isRecommended"`
	Snapshots           []ValueSnapshot `json:"snapshots,omitempty"`
	Errors              []string        `json:"errors,omitempty"`
}

// TweakState is the aggregate observation for one tweak. IsRecommended is a
// tri-state: nil (unknown) when any underlying value probe had no computable
// recommendation or errored.
type TweakState struct {
	TweakID       string       `json:"tweakId"`
	HasDetection  bool         `json:"hasDetection"`
	IsRecommended *bool        `json:"isRecommended"`
	Values        []ValueState `json:"values,omitempty"`
	Errors        []string     `json:"errors,omitempty"`
}
