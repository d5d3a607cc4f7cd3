package config

import (
	"bufio"
	"os"
	"strings"
)

// AliasConfig holds user-declared shorthand names for presets. Each key is
// the alias as typed on the command line and the value is the preset id it
// expands to.
type AliasConfig struct {
	Aliases map[string]string
}

// LoadAliases reads the alias file at path. If the file does not exist, an
// empty config is returned without an error. Invalid or malformed lines are
// silently skipped.
func LoadAliases(path string) (*AliasConfig, error) {
	cfg := &AliasConfig{
		Aliases: make(map[string]string),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip blank lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Expect exactly one "=" separating alias from preset id.
		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		alias := strings.TrimSpace(line[:idx])
		preset := strings.TrimSpace(line[idx+1:])
		if alias == "" || preset == "" {
			continue
		}

		cfg.Aliases[strings.ToLower(alias)] = preset
	}

	if err := scanner.Err(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Resolve expands an alias to its preset id, case-insensitively. Unknown
// names come back unchanged so catalog lookup can report them.
func (c *AliasConfig) Resolve(name string) string {
	if preset, ok := c.Aliases[strings.ToLower(name)]; ok {
		return preset
	}
	return name
}
