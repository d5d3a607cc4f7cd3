// Package plan turns desired-state selections into ordered apply and revert
// operation lists. A plan is built fresh per request and immutable once
// built; operations run in selection order because scripts may have
// order-sensitive side effects.
package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/keelworks/tweakctl/internal/catalog"
)

// ErrUnknownTweak is returned when a selection references a tweak id that is
// not in the catalog.
var ErrUnknownTweak = errors.New("unknown tweak")

// Selection describes a desired state change for one tweak. Parameter
// overrides, when present, take precedence over the catalog operation's
// static parameters (case-insensitively on key).
type Selection struct {
	TweakID            string
	TargetState        bool
	PreviousState      bool
	TargetParameters   map[string]any
	PreviousParameters map[string]any
}

// Invocation is one resolved script call in a plan.
type Invocation struct {
	TweakID     string
	Name        string
	TargetState bool
	ScriptPath  string
	Parameters  map[string]any
}

// Plan holds the ordered operations to reach the target states (Apply) and
// the mirror operations to return to the prior states (Revert).
type Plan struct {
	Apply  []Invocation
	Revert []Invocation
}

// Builder resolves selections against a catalog.
type Builder struct {
	catalog *catalog.Catalog
}

// NewBuilder creates a plan builder backed by the given catalog.
func NewBuilder(cat *catalog.Catalog) *Builder {
	return &Builder{catalog: cat}
}

// Build resolves each selection into apply and revert invocations. A tweak
// whose target or previous state has no corresponding operation contributes
// nothing to that side; some tweaks are enable-only or disable-only and that
// is a modeled allowance, not an error. An unknown tweak id fails the whole
// build.
func (b *Builder) Build(selections []Selection) (*Plan, error) {
	p := &Plan{}

	for _, sel := range selections {
		tweak, ok := b.catalog.Tweak(sel.TweakID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTweak, sel.TweakID)
		}

		if op := tweak.Operation(sel.TargetState); op != nil {
			p.Apply = append(p.Apply, Invocation{
				TweakID:     tweak.ID,
				Name:        tweak.Name,
				TargetState: sel.TargetState,
				ScriptPath:  op.Script,
				Parameters:  MergeParameters(op.Parameters, sel.TargetParameters),
			})
		}

		if op := tweak.Operation(sel.PreviousState); op != nil {
			p.Revert = append(p.Revert, Invocation{
				TweakID:     tweak.ID,
				Name:        tweak.Name,
				TargetState: sel.PreviousState,
				ScriptPath:  op.Script,
				Parameters:  MergeParameters(op.Parameters, sel.PreviousParameters),
			})
		}
	}

	return p, nil
}

// MergeParameters overlays overrides onto base parameters. Override keys win
// case-insensitively: an override replaces a base key that differs only in
// case rather than producing both. The inputs are never mutated.
func MergeParameters(base, overrides map[string]any) map[string]any {
	if len(base) == 0 && len(overrides) == 0 {
		return nil
	}

	merged := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}

	for k, v := range overrides {
		for existing := range merged {
			if strings.EqualFold(existing, k) {
				delete(merged, existing)
			}
		}
		merged[k] = v
	}

	return merged
}
