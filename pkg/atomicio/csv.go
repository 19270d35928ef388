package atomicio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dimchansky/utfbom"
	"golang.org/x/text/encoding/unicode"
)

// Frame is an in-memory CSV table: an ordered column list and rows
// addressed by column name. It mirrors the dynamic, caller-declared
// schema spec.md's CSV tables use — columns are not fixed at compile
// time, so a Frame is a thin ordered-map table rather than a typed
// struct slice.
type Frame struct {
	Columns []string
	Rows    []map[string]string
}

// ReadCSV reads an existing CSV table, stripping a UTF-8 BOM if
// present. A missing file is not an error: it yields an empty Frame
// with no columns, matching §4.2's "treat existing as empty" rule.
func ReadCSV(path string) (Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Frame{}, nil
		}
		return Frame{}, fmt.Errorf("open csv %q: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(utfbom.SkipOnly(f))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return Frame{}, nil
	}
	if err != nil {
		return Frame{}, fmt.Errorf("read csv header %q: %w", path, err)
	}

	frame := Frame{Columns: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Frame{}, fmt.Errorf("read csv row %q: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}

// WriteCSVAtomic renders frame as UTF-8-with-BOM CSV text and writes
// it atomically (temp file + rename) via AtomicWriteFile, per §6.1's
// spreadsheet-tool-compatibility requirement.
func WriteCSVAtomic(path string, frame Frame) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(frame.Columns); err != nil {
		return fmt.Errorf("write csv header for %q: %w", path, err)
	}
	for _, row := range frame.Rows {
		record := make([]string, len(frame.Columns))
		for i, col := range frame.Columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row for %q: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv for %q: %w", path, err)
	}

	bomEncoded, err := unicode.UTF8BOM.NewEncoder().Bytes(buf.Bytes())
	if err != nil {
		return fmt.Errorf("bom-encode csv for %q: %w", path, err)
	}
	return AtomicWriteFile(path, bomEncoded, 0o644)
}

// mergedColumns returns existing's columns, followed by any of
// incoming's columns not already present, preserving both relative
// orders — the ordering rule §4.2 specifies for upserts.
func mergedColumns(existing, incoming []string) []string {
	if len(existing) == 0 {
		return append([]string(nil), incoming...)
	}
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, c := range existing {
		seen[c] = true
	}
	for _, c := range incoming {
		if !seen[c] {
			out = append(out, c)
			seen[c] = true
		}
	}
	return out
}

func keyOf(row map[string]string, keyCols []string) string {
	key := ""
	for _, c := range keyCols {
		key += c + "=" + row[c] + "\x1f"
	}
	return key
}

func rowsEqual(a, b map[string]string, columns []string) bool {
	for _, c := range columns {
		if a[c] != b[c] {
			return false
		}
	}
	return true
}

// UpsertCSV inserts or updates incoming's rows into the CSV at path,
// keyed by keyCols. It acquires the sibling ".lock" file for the
// duration of the read-merge-write cycle, so concurrent upserts from
// other processes on this host serialize correctly.
//
// incoming is first deduplicated by key, keeping the last occurrence
// per key. Existing rows whose key is also present in incoming are
// removed, then the deduplicated incoming rows are appended — this
// preserves the on-disk order of rows untouched by this upsert and
// appends touched/new rows in incoming order (§5's ordering
// guarantee). inserted counts keys new to the table; updated counts
// keys that existed before with different column values. A key that
// existed before with byte-identical values is neither — re-applying
// an unchanged upsert yields updated == 0 (TESTABLE PROPERTIES #3).
func UpsertCSV(path string, keyCols []string, incoming Frame) (inserted, updated int, err error) {
	err = withLock(path, func() error {
		existing, rerr := readCSVUnlocked(path)
		if rerr != nil {
			return rerr
		}

		columns := mergedColumns(existing.Columns, incoming.Columns)

		dedup := make(map[string]map[string]string, len(incoming.Rows))
		var order []string
		for _, row := range incoming.Rows {
			k := keyOf(row, keyCols)
			if _, ok := dedup[k]; !ok {
				order = append(order, k)
			}
			dedup[k] = row
		}

		existingByKey := make(map[string]map[string]string, len(existing.Rows))
		for _, row := range existing.Rows {
			existingByKey[keyOf(row, keyCols)] = row
		}

		var kept []map[string]string
		for _, row := range existing.Rows {
			if _, touched := dedup[keyOf(row, keyCols)]; !touched {
				kept = append(kept, row)
			}
		}

		for _, k := range order {
			row := dedup[k]
			if prev, existed := existingByKey[k]; existed {
				if !rowsEqual(prev, row, columns) {
					updated++
				}
			} else {
				inserted++
			}
			kept = append(kept, row)
		}

		return WriteCSVAtomic(path, Frame{Columns: columns, Rows: kept})
	})
	return inserted, updated, err
}

// ReplaceRunUpsert implements the consolidator's replace-run write
// path: every existing row whose runIDCol equals runID is dropped,
// then rows is inserted in its given order, all within a single lock
// acquisition so no reader observes a partial replacement.
func ReplaceRunUpsert(path string, runIDCol, runID string, rows Frame) (removed, inserted int, err error) {
	err = withLock(path, func() error {
		existing, rerr := readCSVUnlocked(path)
		if rerr != nil {
			return rerr
		}

		columns := mergedColumns(existing.Columns, rows.Columns)

		var kept []map[string]string
		for _, row := range existing.Rows {
			if row[runIDCol] == runID {
				removed++
				continue
			}
			kept = append(kept, row)
		}
		kept = append(kept, rows.Rows...)
		inserted = len(rows.Rows)

		return WriteCSVAtomic(path, Frame{Columns: columns, Rows: kept})
	})
	return removed, inserted, err
}

// readCSVUnlocked is ReadCSV without taking the sibling lock itself —
// used by callers that already hold it.
func readCSVUnlocked(path string) (Frame, error) {
	return ReadCSV(path)
}

// FilterRows returns the subset of frame.Rows for which pred is true,
// as a new Frame sharing frame's column list.
func FilterRows(frame Frame, pred func(row map[string]string) bool) Frame {
	out := Frame{Columns: frame.Columns}
	for _, row := range frame.Rows {
		if pred(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// ProjectColumns returns a new Frame containing only the named
// columns, in the given order, for every row of frame.
func ProjectColumns(frame Frame, columns []string) Frame {
	out := Frame{Columns: columns, Rows: make([]map[string]string, 0, len(frame.Rows))}
	for _, row := range frame.Rows {
		projected := make(map[string]string, len(columns))
		for _, c := range columns {
			projected[c] = row[c]
		}
		out.Rows = append(out.Rows, projected)
	}
	return out
}

// SortRowsBy stably sorts frame.Rows by the given column's string
// value, ascending.
func SortRowsBy(frame Frame, column string) {
	sort.SliceStable(frame.Rows, func(i, j int) bool {
		return frame.Rows[i][column] < frame.Rows[j][column]
	})
}
