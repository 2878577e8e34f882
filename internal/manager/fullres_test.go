package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowSizeBuckets(t *testing.T) {
	assert.Equal(t, 1400, WindowSize(60))
	assert.Equal(t, 1200, WindowSize(50))
	assert.Equal(t, 700, WindowSize(30))
	assert.Equal(t, 600, WindowSize(24))
	assert.Equal(t, 600, WindowSize(23.976))
}

func TestWindowSizeBoundaries(t *testing.T) {
	assert.Equal(t, 1400, WindowSize(55.01))
	assert.Equal(t, 1200, WindowSize(45.01))
	assert.Equal(t, 600, WindowSize(28.0))
}
