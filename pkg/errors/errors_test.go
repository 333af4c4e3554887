package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWrapsSentinel(t *testing.T) {
	err := New(ErrNotFound, "document missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "document missing")
}

func TestNewfFormats(t *testing.T) {
	err := Newf(ErrInvalidInput, "field %q rejected", "title")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), `"title"`)
}

func TestWrappedChainsSurvive(t *testing.T) {
	inner := Newf(ErrBackend, "disk full")
	outer := fmt.Errorf("saving: %w", inner)
	assert.ErrorIs(t, outer, ErrBackend)
	assert.False(t, errors.Is(outer, ErrTimeout))
}
