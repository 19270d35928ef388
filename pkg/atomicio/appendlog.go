package atomicio

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// AppendLogRecord appends a single structured event line to path:
// an ISO-8601 UTC timestamp, a space, and the fields serialized as
// compact JSON. The sibling ".lock" file serializes concurrent
// appenders on this host; on crash before flush, a partial trailing
// line is acceptable since these logs are diagnostic, not a
// coordination surface (spec.md §9).
func AppendLogRecord(path string, fields map[string]any) error {
	line, err := formatLogLine(fields)
	if err != nil {
		return err
	}

	return withLock(path, func() error {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log %q for append: %w", path, err)
		}
		defer f.Close()

		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("append log record to %q: %w", path, err)
		}
		return nil
	})
}

func formatLogLine(fields map[string]any) (string, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal log record: %w", err)
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	return ts + " " + string(payload) + "\n", nil
}
