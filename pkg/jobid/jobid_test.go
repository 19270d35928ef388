package jobid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHappyPathSingleJobLiteral(t *testing.T) {
	// The literal walkthrough from spec.md §8 end-to-end scenario 1.
	hash := ImageSetHash([]string{"dataset/335888/images/335888_A.jpg"})
	id := JobID("335888", "default", "algo1", hash)

	assert.Len(t, id, 12)
	// Recomputing from the same inputs must reproduce the identical id.
	assert.Equal(t, id, JobID("335888", "default", "algo1", hash))
}

func TestJobIDIsDeterministicAcrossCalls(t *testing.T) {
	hash := ImageSetHash([]string{"a.jpg", "b.jpg"})
	first := JobID("1", "default", "algo1", hash)
	second := JobID("1", "default", "algo1", hash)
	assert.Equal(t, first, second)
}

func TestJobIDVariesWithAnyInput(t *testing.T) {
	hash := ImageSetHash([]string{"a.jpg"})
	base := JobID("1", "default", "algo1", hash)

	assert.NotEqual(t, base, JobID("2", "default", "algo1", hash))
	assert.NotEqual(t, base, JobID("1", "other", "algo1", hash))
	assert.NotEqual(t, base, JobID("1", "default", "algo2", hash))
	assert.NotEqual(t, base, JobID("1", "default", "algo1", ImageSetHash([]string{"b.jpg"})))
}

func TestImageSetHashIsOrderSensitive(t *testing.T) {
	a := ImageSetHash([]string{"a.jpg", "b.jpg"})
	b := ImageSetHash([]string{"b.jpg", "a.jpg"})
	assert.NotEqual(t, a, b)
}
