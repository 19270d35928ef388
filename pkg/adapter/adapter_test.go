package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubAdapter struct{}

func (stubAdapter) Execute(ctx context.Context, req Request) (Result, error) { return Result{}, nil }

func TestRegistryGetSet(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("algo1")
	assert.False(t, ok)

	a := stubAdapter{}
	r.Register("algo1", a)

	got, ok := r.Get("algo1")
	assert.True(t, ok)
	assert.Equal(t, a, got)
	assert.ElementsMatch(t, []string{"algo1"}, r.Algorithms())
}

func TestTransientAndPermanentClassification(t *testing.T) {
	tErr := Transient(errors.New("timeout"))
	pErr := Permanent(errors.New("bad input"))

	assert.True(t, IsTransient(tErr))
	assert.False(t, IsTransient(pErr))
	assert.Contains(t, tErr.Error(), "transient")
	assert.Contains(t, pErr.Error(), "permanent")
	assert.Equal(t, "timeout", errors.Unwrap(tErr).Error())
}
