package script

import (
	"encoding/json"
	"strings"
)

// LastJSONObject extracts the last well-formed JSON object from a stream of
// output lines. Detection scripts may emit diagnostic text before (or
// around) their JSON payload, and the payload itself may be pretty-printed
// across several lines, so the scan walks backward from the end and
// reassembles multi-line candidates when a single line does not parse.
func LastJSONObject(lines []string) (map[string]any, bool) {
	for end := len(lines) - 1; end >= 0; end-- {
		if !strings.Contains(lines[end], "}") {
			continue
		}
		for start := end; start >= 0; start-- {
			idx := strings.IndexByte(lines[start], '{')
			if idx < 0 {
				continue
			}

			candidate := lines[start][idx:]
			if start < end {
				candidate = strings.Join(append([]string{candidate}, lines[start+1:end+1]...), "\n")
			}

			var obj map[string]any
			if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &obj); err == nil {
				return obj, true
			}
		}
	}
	return nil, false
}
