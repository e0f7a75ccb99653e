package io

import (
	"sync"
)

type Consumer interface {
	Consume(work chan *WorkUnit, errchan chan error, wg *sync.WaitGroup)
}

// WorkFunc processes the items of a single WorkUnit
type WorkFunc func(unit *WorkUnit) error

type StandardConsumer struct {
	doWork WorkFunc
}

func NewStandardConsumer(doWork WorkFunc) *StandardConsumer {
	return &StandardConsumer{doWork: doWork}
}

// Continually consumes WorkUnits submitted to a work channel until the channel is closed.
// The first error is submitted to the error channel, later units are drained without being
// processed so that the producer never blocks.
func (c *StandardConsumer) Consume(work chan *WorkUnit, errchan chan error, wg *sync.WaitGroup) {
	defer wg.Done()

	failed := false
	for unit := range work {
		if failed {
			continue
		}
		if err := c.doWork(unit); err != nil {
			errchan <- err
			failed = true
		}
	}
}
