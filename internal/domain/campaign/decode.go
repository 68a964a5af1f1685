package campaign

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeBrief parses a brief document. YAML is accepted when the format hint
// says so or when the payload does not look like JSON.
func DecodeBrief(raw []byte, format string) (*Brief, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidBrief)
	}
	var b Brief
	if isYAML(format, trimmed) {
		if err := yaml.Unmarshal(trimmed, &b); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidBrief, err)
		}
		return &b, nil
	}
	if err := json.Unmarshal(trimmed, &b); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidBrief, err)
	}
	return &b, nil
}

func isYAML(format string, raw []byte) bool {
	f := strings.ToLower(strings.TrimSpace(format))
	switch {
	case strings.Contains(f, "yaml"), strings.HasSuffix(f, ".yml"):
		return true
	case strings.Contains(f, "json"):
		return false
	}
	return raw[0] != '{'
}
