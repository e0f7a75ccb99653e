package io

import (
	"runtime"
	"sync"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
)

// Runs one producer and numConsumers consumers until the producer has submitted all of its
// work and every consumer has returned. numConsumers < 1 means a consumer per CPU.
// Errors raised by consumers are collected and returned together.
func RunPool(producer Producer, newConsumer func() Consumer, numConsumers int) error {
	if numConsumers < 1 {
		numConsumers = runtime.NumCPU()
	}

	// init channel where to submit work with a buffer 5 times greater than the number of consumers
	workChannel := make(chan *WorkUnit, numConsumers*5)

	// every consumer submits at most one error
	errorChannel := make(chan error, numConsumers)

	var waitGroup sync.WaitGroup

	waitGroup.Add(1)
	go producer.Produce(workChannel, &waitGroup)

	for i := 0; i < numConsumers; i++ {
		waitGroup.Add(1)
		go newConsumer().Consume(workChannel, errorChannel, &waitGroup)
	}

	waitGroup.Wait()
	close(errorChannel)

	var result *multierror.Error
	for err := range errorChannel {
		glog.Errorln(err)
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Convenience wrapper running fn over [0, total) in chunks of chunkSize
func ForEachRange(total, chunkSize, numConsumers int, fn WorkFunc) error {
	return RunPool(
		NewStandardProducer(total, chunkSize),
		func() Consumer { return NewStandardConsumer(fn) },
		numConsumers,
	)
}
