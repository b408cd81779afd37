package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpochGrid_FullDay(t *testing.T) {
	date := time.Date(2024, 3, 17, 13, 42, 0, 0, time.UTC)
	slots := EpochGrid(date, DefaultEpochStep)

	require.Len(t, slots, 288)
	assert.Equal(t, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), slots[0])
	assert.Equal(t, time.Date(2024, 3, 17, 23, 55, 0, 0, time.UTC), slots[287])
	for i := 1; i < len(slots); i++ {
		assert.Equal(t, DefaultEpochStep, slots[i].Sub(slots[i-1]))
	}
}

func TestEpochGrid_InvalidStep(t *testing.T) {
	assert.Nil(t, EpochGrid(time.Now(), 0))
}
