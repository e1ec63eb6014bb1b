// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// keywordFile is the mapping form of a keywords file.
type keywordFile struct {
	Keywords []string `yaml:"keywords"`
}

// LoadKeywords reads discovery keywords from a YAML or JSON file holding
// either a list of strings or a mapping with a "keywords" list. Blank and
// repeated keywords are dropped; order is preserved.
func LoadKeywords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keywords %s: %w", path, err)
	}
	return ParseKeywords(data)
}

// ParseKeywords decodes keywords from YAML or JSON bytes.
func ParseKeywords(data []byte) ([]string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parsing keywords: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	var raw []string
	switch root := node.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parsing keywords: %w", err)
		}
	case yaml.MappingNode:
		var kf keywordFile
		if err := root.Decode(&kf); err != nil {
			return nil, fmt.Errorf("parsing keywords: %w", err)
		}
		raw = kf.Keywords
	default:
		return nil, fmt.Errorf("parsing keywords: expected a list or a mapping")
	}

	seen := make(map[string]bool, len(raw))
	keywords := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.TrimSpace(k)
		key := strings.ToLower(k)
		if k == "" || seen[key] {
			continue
		}
		seen[key] = true
		keywords = append(keywords, k)
	}
	return keywords, nil
}
