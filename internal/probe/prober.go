package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/keelworks/tweakctl/internal/catalog"
	"github.com/keelworks/tweakctl/internal/script"
)

// DefaultDetectionScript is the well-known detection script invoked for each
// declared value when no other path is configured.
const DefaultDetectionScript = "scripts/get-registry-state.ps1"

// Prober probes the observed state of tweaks through the detection script.
type Prober struct {
	catalog         *catalog.Catalog
	runner          script.Runner
	detectionScript string
	cacheDir        string
}

// Option configures a Prober.
type Option func(*Prober)

// WithDetectionScript overrides the detection script path.
func WithDetectionScript(path string) Option {
	return func(p *Prober) { p.detectionScript = path }
}

// WithCacheDir enables a best-effort mirror of each tweak state to a cache
// directory for diagnostics. The in-memory result stays authoritative; write
// failures are ignored.
func WithCacheDir(dir string) Option {
	return func(p *Prober) { p.cacheDir = dir }
}

// New creates a prober over the given catalog and runner.
func New(cat *catalog.Catalog, runner script.Runner, opts ...Option) *Prober {
	p := &Prober{
		catalog:         cat,
		runner:          runner,
		detectionScript: DefaultDetectionScript,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProbeTweak probes every declared value of the tweak and aggregates the
// results. The only error case is an unknown tweak id; probe failures are
// folded into the returned state.
func (p *Prober) ProbeTweak(ctx context.Context, tweakID string) (*TweakState, error) {
	tweak, ok := p.catalog.Tweak(tweakID)
	if !ok {
		return nil, fmt.Errorf("unknown tweak: %s", tweakID)
	}

	state := &TweakState{
		TweakID:      tweak.ID,
		HasDetection: tweak.HasDetection(),
	}
	if !state.HasDetection {
		p.mirrorState(state)
		return state, nil
	}

	matched := true
	unknown := false
	for _, det := range tweak.Detection {
		vs := p.ProbeValue(ctx, det)
		state.Values = append(state.Values, vs)
		state.Errors = appendUnique(state.Errors, vs.Errors...)

		switch {
		case len(vs.Errors) > 0 || vs.IsRecommended == nil:
			unknown = true
		case !*vs.IsRecommended:
			matched = false
		}
	}

	if !unknown {
		state.IsRecommended = &matched
	}

	p.mirrorState(state)
	return state, nil
}

// ProbeValue invokes the detection script for one declared value and
// normalizes its JSON payload. A missing or unparseable payload yields a
// failure state carrying the deduplicated error lines.
func (p *Prober) ProbeValue(ctx context.Context, det catalog.ValueDetection) ValueState {
	state := ValueState{
		Path:                det.RegistryPath(),
		ValueName:           det.ValueName,
		LookupValueName:     det.LookupValueName,
		ValueType:           det.ValueType,
		SupportsCustomValue: det.SupportsCustomValue,
		RecommendedValue:    det.RecommendedValue,
	}

	params := map[string]any{
		"Path":                det.RegistryPath(),
		"ValueName":           det.ValueName,
		"ValueType":           det.ValueType,
		"SupportsCustomValue": det.SupportsCustomValue,
	}
	if det.RecommendedValue != nil {
		params["RecommendedValue"] = script.FormatValue(det.RecommendedValue)
	}
	if det.LookupValueName != "" {
		params["LookupValueName"] = det.LookupValueName
	}

	res, err := p.runner.Invoke(ctx, p.detectionScript, params)
	if err != nil {
		state.Errors = appendUnique(state.Errors, err.Error())
		return state
	}

	payload, ok := script.LastJSONObject(res.OutputLines)
	if !ok {
		errs := appendUnique(nil, res.ErrorLines...)
		if len(errs) == 0 {
			errs = []string{fmt.Sprintf("detection script produced no parseable output for %s", det.RegistryPath())}
		}
		state.Errors = errs
		return state
	}

	applyPayload(&state, payload)

	state.IsRecommended = matchRecommendation(
		state.CurrentValue,
		state.RecommendedValue,
		state.CurrentDisplay,
		state.RecommendedDisplay,
	)

	// The script may pre-compute the match for lookups the prober cannot
	// evaluate itself; honor it only when the local comparison is unknown.
	if state.IsRecommended == nil {
		if v, ok := payload["isRecommendedState"].(bool); ok {
			state.IsRecommended = &v
		}
	}
	return state
}

// applyPayload copies the detection script's JSON payload onto the value
// state. Payload fields win over the declared detection where both exist.
func applyPayload(state *ValueState, payload map[string]any) {
	if v, ok := payload["path"].(string); ok && v != "" {
		state.Path = v
	}
	if v, ok := payload["valueName"].(string); ok && v != "" {
		state.ValueName = v
	}
	if v, ok := payload["lookupValueName"].(string); ok && v != "" {
		state.LookupValueName = v
	}
	if v, ok := payload["valueType"].(string); ok && v != "" {
		state.ValueType = v
	}
	if v, ok := payload["supportsCustomValue"].(bool); ok {
		state.SupportsCustomValue = v
	}

	state.CurrentValue = payload["currentValue"]
	state.CurrentDisplay = displayLines(payload["currentDisplay"])

	if v, present := payload["recommendedValue"]; present && v != nil {
		state.RecommendedValue = v
	}
	if v, ok := payload["recommendedDisplay"].(string); ok {
		state.RecommendedDisplay = v
	}

	if raw, ok := payload["values"].([]any); ok {
		for _, item := range raw {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			snap := ValueSnapshot{Value: entry["value"]}
			if v, ok := entry["path"].(string); ok {
				snap.Path = v
			}
			if v, ok := entry["display"].(string); ok {
				snap.Display = v
			}
			state.Snapshots = append(state.Snapshots, snap)
		}
	}
}

// displayLines normalizes currentDisplay, which may arrive as a string or a
// list of strings.
func displayLines(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []any:
		var lines []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				lines = append(lines, s)
			}
		}
		return lines
	}
	return nil
}

// mirrorState writes a best-effort copy of the state to the cache directory
// for diagnostics. Failures are ignored; the in-memory result is
// authoritative.
func (p *Prober) mirrorState(state *TweakState) {
	if p.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(p.cacheDir, 0755); err != nil {
		return
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return
	}
	name := strings.ToLower(state.TweakID) + ".json"
	_ = os.WriteFile(filepath.Join(p.cacheDir, name), data, 0644)
}

// appendUnique appends lines to dst, skipping empties and duplicates.
func appendUnique(dst []string, lines ...string) []string {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		seen := false
		for _, existing := range dst {
			if existing == line {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, line)
		}
	}
	return dst
}
