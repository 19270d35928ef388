package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// enrichmentEntry is one product's optional enrichment record, keyed
// by product_id in the enrichment document. Locale maps use ISO
// language codes; §4.3 specifies Italian preferred, English fallback.
type enrichmentEntry struct {
	Manufacturer string            `json:"manufacturer"`
	Name         map[string]string `json:"name"`
	Description  map[string]string `json:"description"`
	Category     string            `json:"category"` // deepest path, " > "-separated
}

// localized picks the Italian value, falling back to English.
func localized(m map[string]string) string {
	if v := m["it"]; v != "" {
		return v
	}
	return m["en"]
}

// categoryLevels splits a deepest category path on " > " and keeps
// the first three segments, per §4.3.
func categoryLevels(path string) [3]string {
	var out [3]string
	if path == "" {
		return out
	}
	parts := strings.Split(path, " > ")
	for i := 0; i < 3 && i < len(parts); i++ {
		out[i] = strings.TrimSpace(parts[i])
	}
	return out
}

// loadEnrichment reads the optional enrichment JSON document: an
// object keyed by product identifier. A missing path yields an empty
// map, not an error — enrichment is always optional.
func loadEnrichment(path string) (map[string]enrichmentEntry, error) {
	if path == "" {
		return map[string]enrichmentEntry{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]enrichmentEntry{}, nil
		}
		return nil, fmt.Errorf("read enrichment document %q: %w", path, err)
	}
	var doc map[string]enrichmentEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse enrichment document %q: %w", path, err)
	}
	return doc, nil
}
