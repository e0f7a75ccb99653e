package io

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/geofuse/internal/errs"
)

func TestForEachRangeVisitsEveryIndexOnce(t *testing.T) {
	visits := make([]int32, 1003)
	err := ForEachRange(len(visits), 17, 4, func(unit *WorkUnit) error {
		for i := unit.Start; i < unit.End; i++ {
			atomic.AddInt32(&visits[i], 1)
		}
		return nil
	})
	require.NoError(t, err)
	for i, v := range visits {
		assert.Equal(t, int32(1), v, "index %d", i)
	}
}

func TestForEachRangeEmpty(t *testing.T) {
	called := false
	err := ForEachRange(0, 10, 0, func(unit *WorkUnit) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestPoolCollectsErrorsWithoutBlocking(t *testing.T) {
	err := ForEachRange(10000, 1, 3, func(unit *WorkUnit) error {
		if unit.Start%2 == 0 {
			return errs.Precondition("unit %d failed", unit.Start)
		}
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPrecondition))
}

func TestStandardProducerChunks(t *testing.T) {
	work := make(chan *WorkUnit, 10)
	var wg sync.WaitGroup
	wg.Add(1)
	NewStandardProducer(10, 4).Produce(work, &wg)
	wg.Wait()

	var units []WorkUnit
	for u := range work {
		units = append(units, *u)
	}
	assert.Equal(t, []WorkUnit{{0, 4}, {4, 8}, {8, 10}}, units)
	assert.Equal(t, 2, units[2].Len())
}
