// Package catalog provides the immutable table of tweak, task, and preset
// definitions that drives planning, probing, and the maintenance queue.
// Definitions are loaded once from declarative JSON and are read-only
// thereafter.
package catalog

import "strings"

// Operation describes one side of a tweak: the script that moves the machine
// into (enable) or out of (disable) the tweaked state.
type Operation struct {
	Script     string         `json:"script" validate:"required"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ValueDetection describes one registry value probe for a tweak.
type ValueDetection struct {
	Hive                string `json:"hive" validate:"required,hive"`
	KeyPath             string `json:"keyPath" validate:"required,keypath"`
	ValueName           string `json:"valueName" validate:"required"`
	ValueType           string `json:"valueType" validate:"required"`
	SupportsCustomValue bool   `json:"supportsCustomValue"`
	RecommendedValue    any    `json:"recommendedValue,omitempty"`
	LookupValueName     string `json:"lookupValueName,omitempty"`
}

// RegistryPath returns the composed registry path for this detection,
// e.g. "HKLM\SOFTWARE\Microsoft\Windows\...".
func (d ValueDetection) RegistryPath() string {
	return d.Hive + `\` + d.KeyPath
}

// Tweak is a named, reversible configuration change. At least one of Enable
// or Disable must be present; some tweaks are enable-only or disable-only.
type Tweak struct {
	ID        string           `json:"id" validate:"required"`
	Name      string           `json:"name" validate:"required"`
	Category  string           `json:"category,omitempty"`
	Risk      string           `json:"risk,omitempty" validate:"omitempty,oneof=low medium high"`
	Enable    *Operation       `json:"enable,omitempty"`
	Disable   *Operation       `json:"disable,omitempty"`
	Detection []ValueDetection `json:"detection,omitempty" validate:"omitempty,dive"`
}

// Operation returns the operation that moves the tweak to the given state,
// or nil if the tweak does not define that side.
func (t *Tweak) Operation(state bool) *Operation {
	if state {
		return t.Enable
	}
	return t.Disable
}

// HasDetection reports whether the tweak declares any detection probes.
func (t *Tweak) HasDetection() bool {
	return len(t.Detection) > 0
}

// Task is a longer maintenance job run through the task queue, not a
// registry tweak.
type Task struct {
	ID         string         `json:"id" validate:"required"`
	Name       string         `json:"name" validate:"required"`
	Category   string         `json:"category,omitempty"`
	Script     string         `json:"script" validate:"required"`
	Parameters map[string]any `json:"parameters,omitempty"`
	// Guard names a task that must be queued ahead of this one unless a
	// live run of it already exists, e.g. a system restore point before
	// destructive cleanup.
	Guard string `json:"guard,omitempty"`
}

// Preset is a named bundle of desired tweak states.
type Preset struct {
	ID     string          `json:"id" validate:"required"`
	Name   string          `json:"name" validate:"required"`
	States map[string]bool `json:"states" validate:"required,min=1"`
}

// Catalog is the loaded, validated definition table. Lookups are
// case-insensitive on id; listing preserves file order.
type Catalog struct {
	tweaks  map[string]*Tweak
	tasks   map[string]*Task
	presets map[string]*Preset

	tweakOrder  []string
	taskOrder   []string
	presetOrder []string
}

// Tweak returns the tweak with the given id, or false if absent.
func (c *Catalog) Tweak(id string) (*Tweak, bool) {
	t, ok := c.tweaks[strings.ToLower(id)]
	return t, ok
}

// Task returns the task with the given id, or false if absent.
func (c *Catalog) Task(id string) (*Task, bool) {
	t, ok := c.tasks[strings.ToLower(id)]
	return t, ok
}

// Preset returns the preset with the given id, or false if absent.
func (c *Catalog) Preset(id string) (*Preset, bool) {
	p, ok := c.presets[strings.ToLower(id)]
	return p, ok
}

// Tweaks returns all tweaks in file order.
func (c *Catalog) Tweaks() []*Tweak {
	out := make([]*Tweak, 0, len(c.tweakOrder))
	for _, id := range c.tweakOrder {
		out = append(out, c.tweaks[id])
	}
	return out
}

// Tasks returns all tasks in file order.
func (c *Catalog) Tasks() []*Task {
	out := make([]*Task, 0, len(c.taskOrder))
	for _, id := range c.taskOrder {
		out = append(out, c.tasks[id])
	}
	return out
}

// Presets returns all presets in file order.
func (c *Catalog) Presets() []*Preset {
	out := make([]*Preset, 0, len(c.presetOrder))
	for _, id := range c.presetOrder {
		out = append(out, c.presets[id])
	}
	return out
}
