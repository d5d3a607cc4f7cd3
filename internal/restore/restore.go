// Package restore persists revert plans as durable restore points. Each
// point is one JSON file under a dedicated directory; the file is the source
// of truth and in-memory points are reconstructed by re-reading it. Old
// points are pruned by count, never by age.
package restore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keelworks/tweakctl/internal/plan"
)

// Retention is how many restore points are kept; older files beyond this
// count are deleted after each save.
const Retention = 10

// SelectionSummary records the state transition that produced a point.
type SelectionSummary struct {
	TweakID       string `json:"tweakId"`
	PreviousState bool   `json:"previousState"`
	TargetState   bool   `json:"targetState"`
}

// StoredOperation is the wire form of a revert invocation. Parameter values
// are individually JSON-encoded so arbitrary value shapes round-trip.
type StoredOperation struct {
	TweakID     string            `json:"tweakId"`
	Name        string            `json:"name"`
	TargetState bool              `json:"targetState"`
	ScriptPath  string            `json:"scriptPath"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// Point is a persisted revert plan plus the selections that produced it.
type Point struct {
	ID         string             `json:"id"`
	CreatedUTC time.Time          `json:"createdUtc"`
	Selections []SelectionSummary `json:"selections"`
	Operations []StoredOperation  `json:"operations"`

	// Path is the backing file, set when the point is read or written.
	Path string `json:"-"`
}

// Invocations decodes the stored operations back into live invocations.
// A parameter value that does not decode as JSON is kept as its raw string.
func (p *Point) Invocations() []plan.Invocation {
	ops := make([]plan.Invocation, 0, len(p.Operations))
	for _, stored := range p.Operations {
		inv := plan.Invocation{
			TweakID:     stored.TweakID,
			Name:        stored.Name,
			TargetState: stored.TargetState,
			ScriptPath:  stored.ScriptPath,
		}
		if len(stored.Parameters) > 0 {
			inv.Parameters = make(map[string]any, len(stored.Parameters))
			for k, encoded := range stored.Parameters {
				var v any
				if err := json.Unmarshal([]byte(encoded), &v); err != nil {
					v = encoded
				}
				inv.Parameters[k] = v
			}
		}
		ops = append(ops, inv)
	}
	return ops
}

// Store reads and writes restore points under a dedicated directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created lazily on
// first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory holding restore-point files.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists the plan's revert side as a new restore point and prunes old
// points beyond the retention count. It returns nil without error when the
// revert side is empty or no selections were supplied — undo has nothing to
// do in either case. A write failure aborts only this save.
func (s *Store) Save(selections []plan.Selection, p *plan.Plan) (*Point, error) {
	if len(selections) == 0 || len(p.Revert) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create restore point directory: %w", err)
	}

	point := &Point{
		ID:         uuid.NewString(),
		CreatedUTC: time.Now().UTC(),
	}

	for _, sel := range selections {
		point.Selections = append(point.Selections, SelectionSummary{
			TweakID:       sel.TweakID,
			PreviousState: sel.PreviousState,
			TargetState:   sel.TargetState,
		})
	}

	for _, inv := range p.Revert {
		stored := StoredOperation{
			TweakID:     inv.TweakID,
			Name:        inv.Name,
			TargetState: inv.TargetState,
			ScriptPath:  inv.ScriptPath,
		}
		if len(inv.Parameters) > 0 {
			stored.Parameters = make(map[string]string, len(inv.Parameters))
			for k, v := range inv.Parameters {
				encoded, err := json.Marshal(v)
				if err != nil {
					return nil, fmt.Errorf("failed to encode parameter %s for %s: %w", k, inv.TweakID, err)
				}
				stored.Parameters[k] = string(encoded)
			}
		}
		point.Operations = append(point.Operations, stored)
	}

	filename := fmt.Sprintf("%s_%s.json", point.CreatedUTC.Format("20060102T150405"), point.ID)
	point.Path = filepath.Join(s.dir, filename)

	data, err := json.MarshalIndent(point, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal restore point: %w", err)
	}
	if err := os.WriteFile(point.Path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write restore point file: %w", err)
	}

	// Pruning is best-effort; a failure here does not invalidate the save.
	if err := s.prune(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to prune old restore points: %v\n", err)
	}

	return point, nil
}

// List returns all readable restore points, newest first. Corrupt files are
// skipped silently rather than aborting the scan.
func (s *Store) List() ([]*Point, error) {
	files, err := s.pointFiles()
	if err != nil {
		return nil, err
	}

	var points []*Point
	for _, path := range files {
		point, err := readPoint(path)
		if err != nil || len(point.Operations) == 0 {
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

// Latest returns the newest restore point that deserializes to at least one
// operation, or nil when none exists.
func (s *Store) Latest() (*Point, error) {
	points, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}
	return points[0], nil
}

// Get returns the restore point with the given id.
func (s *Store) Get(id string) (*Point, error) {
	points, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		if strings.EqualFold(p.ID, id) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("restore point %s not found", id)
}

// Delete removes the restore point with the given id.
func (s *Store) Delete(id string) error {
	point, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := os.Remove(point.Path); err != nil {
		return fmt.Errorf("failed to delete restore point file: %w", err)
	}
	return nil
}

// prune deletes restore-point files beyond the retention count, oldest
// first.
func (s *Store) prune() error {
	files, err := s.pointFiles()
	if err != nil {
		return err
	}
	for _, path := range files[min(len(files), Retention):] {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// pointFiles lists restore-point files sorted newest first by modification
// time, then by filename (the name embeds the creation timestamp, so the tie
// break is still chronological).
func (s *Store) pointFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read restore point directory: %w", err)
	}

	type fileInfo struct {
		path    string
		name    string
		modTime time.Time
	}

	var files []fileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			path:    filepath.Join(s.dir, entry.Name()),
			name:    entry.Name(),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.After(files[j].modTime)
		}
		return files[i].name > files[j].name
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// readPoint reads and parses a single restore-point file.
func readPoint(path string) (*Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read restore point file: %w", err)
	}
	var point Point
	if err := json.Unmarshal(data, &point); err != nil {
		return nil, fmt.Errorf("failed to parse restore point JSON: %w", err)
	}
	point.Path = path
	return &point, nil
}
