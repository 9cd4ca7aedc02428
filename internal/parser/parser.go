// Package parser decodes device-export files dropped into the import
// inbox. Exports are JSON or YAML documents carrying a batch of tracking
// entries.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportEntry is one tracked record inside an export file.
type ExportEntry struct {
	Date       string  `json:"date" yaml:"date"`
	CategoryID string  `json:"category_id" yaml:"category_id"`
	MetricID   string  `json:"metric_id,omitempty" yaml:"metric_id,omitempty"`
	Duration   int     `json:"duration_min" yaml:"duration_min"`
	Value      float64 `json:"value" yaml:"value"`
	Notes      string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Export is a parsed device-export document.
type Export struct {
	Device     string        `json:"device" yaml:"device"`
	ExportedAt time.Time     `json:"exported_at" yaml:"exported_at"`
	Entries    []ExportEntry `json:"entries" yaml:"entries"`
}

// Parse decodes raw export bytes. Documents starting with '{' are
// treated as JSON, everything else as YAML.
func Parse(data []byte) (*Export, error) {
	trimmed := bytes.TrimLeft(data, " \t\n\r")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("parser: empty export")
	}

	var ex Export
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &ex); err != nil {
			return nil, fmt.Errorf("parser: decode json export: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &ex); err != nil {
			return nil, fmt.Errorf("parser: decode yaml export: %w", err)
		}
	}

	if len(ex.Entries) == 0 {
		return nil, fmt.Errorf("parser: export has no entries")
	}
	for i, e := range ex.Entries {
		if e.Date == "" {
			return nil, fmt.Errorf("parser: entry %d: missing date", i)
		}
		if e.CategoryID == "" {
			return nil, fmt.Errorf("parser: entry %d: missing category_id", i)
		}
	}
	return &ex, nil
}
