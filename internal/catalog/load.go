package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// file is the on-disk shape of the catalog.
type file struct {
	Tweaks  []Tweak  `json:"tweaks"`
	Tasks   []Task   `json:"tasks,omitempty"`
	Presets []Preset `json:"presets,omitempty"`
}

// Load reads and validates a catalog JSON file. Malformed definitions fail
// fast: a catalog with any invalid entry is rejected as a whole.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}

	return New(f.Tweaks, f.Tasks, f.Presets)
}

// New builds and validates a catalog from in-memory definitions.
func New(tweaks []Tweak, tasks []Task, presets []Preset) (*Catalog, error) {
	c := &Catalog{
		tweaks:  make(map[string]*Tweak, len(tweaks)),
		tasks:   make(map[string]*Task, len(tasks)),
		presets: make(map[string]*Preset, len(presets)),
	}

	for i := range tweaks {
		t := tweaks[i]
		if err := validateTweak(&t); err != nil {
			return nil, fmt.Errorf("tweak %q: %w", t.ID, err)
		}
		key := strings.ToLower(t.ID)
		if _, exists := c.tweaks[key]; exists {
			return nil, fmt.Errorf("tweak %q: duplicate id", t.ID)
		}
		c.tweaks[key] = &t
		c.tweakOrder = append(c.tweakOrder, key)
	}

	for i := range tasks {
		t := tasks[i]
		if err := validateStruct(&t); err != nil {
			return nil, fmt.Errorf("task %q: %w", t.ID, err)
		}
		key := strings.ToLower(t.ID)
		if _, exists := c.tasks[key]; exists {
			return nil, fmt.Errorf("task %q: duplicate id", t.ID)
		}
		c.tasks[key] = &t
		c.taskOrder = append(c.taskOrder, key)
	}

	// Guards may only reference known tasks.
	for _, key := range c.taskOrder {
		t := c.tasks[key]
		if t.Guard == "" {
			continue
		}
		if _, ok := c.tasks[strings.ToLower(t.Guard)]; !ok {
			return nil, fmt.Errorf("task %q: unknown guard task %q", t.ID, t.Guard)
		}
	}

	for i := range presets {
		p := presets[i]
		if err := validateStruct(&p); err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.ID, err)
		}
		key := strings.ToLower(p.ID)
		if _, exists := c.presets[key]; exists {
			return nil, fmt.Errorf("preset %q: duplicate id", p.ID)
		}
		// Presets may only reference known tweaks.
		for tweakID := range p.States {
			if _, ok := c.tweaks[strings.ToLower(tweakID)]; !ok {
				return nil, fmt.Errorf("preset %q: unknown tweak %q", p.ID, tweakID)
			}
		}
		c.presets[key] = &p
		c.presetOrder = append(c.presetOrder, key)
	}

	return c, nil
}
