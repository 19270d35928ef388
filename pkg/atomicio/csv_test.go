package atomicio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertCSVInsertsNewRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.csv")

	inserted, updated, err := UpsertCSV(path, []string{"id"}, Frame{
		Columns: []string{"id", "name"},
		Rows: []map[string]string{
			{"id": "1", "name": "a"},
			{"id": "2", "name": "b"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 0, updated)

	frame, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Len(t, frame.Rows, 2)
}

func TestUpsertCSVIsIdempotentOnUnchangedInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.csv")
	incoming := Frame{
		Columns: []string{"id", "name"},
		Rows: []map[string]string{
			{"id": "1", "name": "a"},
		},
	}

	_, _, err := UpsertCSV(path, []string{"id"}, incoming)
	require.NoError(t, err)

	inserted, updated, err := UpsertCSV(path, []string{"id"}, incoming)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 0, updated)

	frame, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Len(t, frame.Rows, 1, "no row duplication")
}

func TestUpsertCSVUpdatesChangedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.csv")
	_, _, err := UpsertCSV(path, []string{"id"}, Frame{
		Columns: []string{"id", "name"},
		Rows:    []map[string]string{{"id": "1", "name": "a"}},
	})
	require.NoError(t, err)

	inserted, updated, err := UpsertCSV(path, []string{"id"}, Frame{
		Columns: []string{"id", "name"},
		Rows:    []map[string]string{{"id": "1", "name": "a-changed"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 1, updated)
}

func TestUpsertCSVPreservesUntouchedOrderAndAppendsNewColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.csv")
	_, _, err := UpsertCSV(path, []string{"id"}, Frame{
		Columns: []string{"id", "name"},
		Rows: []map[string]string{
			{"id": "1", "name": "a"},
			{"id": "2", "name": "b"},
		},
	})
	require.NoError(t, err)

	_, _, err = UpsertCSV(path, []string{"id"}, Frame{
		Columns: []string{"id", "extra"},
		Rows: []map[string]string{
			{"id": "2", "extra": "x"},
		},
	})
	require.NoError(t, err)

	frame, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "extra"}, frame.Columns)
	require.Len(t, frame.Rows, 2)
	assert.Equal(t, "1", frame.Rows[0]["id"], "untouched row 1 stays first")
	assert.Equal(t, "2", frame.Rows[1]["id"], "touched row 2 moves to tail")
	assert.Equal(t, "x", frame.Rows[1]["extra"])
}

func TestReplaceRunUpsertReplacesOnlyMatchingRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generations.csv")
	_, _, err := UpsertCSV(path, []string{"run_id", "job_id"}, Frame{
		Columns: []string{"run_id", "job_id", "status"},
		Rows: []map[string]string{
			{"run_id": "r1", "job_id": "a", "status": "enqueued"},
			{"run_id": "r2", "job_id": "b", "status": "enqueued"},
		},
	})
	require.NoError(t, err)

	removed, inserted, err := ReplaceRunUpsert(path, "run_id", "r1", Frame{
		Columns: []string{"run_id", "job_id", "status"},
		Rows: []map[string]string{
			{"run_id": "r1", "job_id": "a", "status": "completed"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, inserted)

	frame, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Len(t, frame.Rows, 2)
}

func TestReadCSVMissingFileIsEmptyNotError(t *testing.T) {
	frame, err := ReadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	assert.Empty(t, frame.Columns)
	assert.Empty(t, frame.Rows)
}

func TestWriteCSVAtomicProducesBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSVAtomic(path, Frame{
		Columns: []string{"a"},
		Rows:    []map[string]string{{"a": "1"}},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, data[:3])
}
