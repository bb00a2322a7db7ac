package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/offsync/internal/api"
)

// parseFields turns name=value pairs into a field map. A value that parses as
// JSON keeps its JSON type, so total=3.5 is a number and note="3.5" a string.
func parseFields(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	fields := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("bad field %q, want name=value", p)
		}

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		fields[name] = v
	}
	return fields, nil
}

func parseWatermark(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("bad watermark %q, want RFC 3339: %w", s, err)
	}
	return &t, nil
}

// readRecords loads a BULK_SYNC batch: a JSON array of
// {"record_id": ..., "fields": {...}}.
func readRecords(path string) ([]api.BulkRecord, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []api.BulkRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("bad records file %s: %w", path, err)
	}
	return records, nil
}
