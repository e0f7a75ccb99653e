package io

import (
	"sync"
)

// Splits the index range [0, total) into WorkUnits of at most chunkSize items
type StandardProducer struct {
	total     int
	chunkSize int
}

func NewStandardProducer(total int, chunkSize int) *StandardProducer {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &StandardProducer{
		total:     total,
		chunkSize: chunkSize,
	}
}

// Submits WorkUnits to the provided work channel in index order.
// Closes the channel when all work is submitted.
func (p *StandardProducer) Produce(work chan *WorkUnit, wg *sync.WaitGroup) {
	for start := 0; start < p.total; start += p.chunkSize {
		end := start + p.chunkSize
		if end > p.total {
			end = p.total
		}
		work <- &WorkUnit{Start: start, End: end}
	}
	close(work)
	wg.Done()
}
