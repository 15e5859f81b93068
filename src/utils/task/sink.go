package task

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rentledger/syncer/src/utils/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/gammazero/deque"
)

// Batching task. Buffers incoming items and hands them to onFlush when the batch
// is full or the flush interval passes, whichever comes first.
// A batch that can't be flushed within the backoff limits is dropped.
type Sink[In any] struct {
	*Task

	// Channel for the data to be processed
	input chan In

	// Called to handle a batch of data
	onFlush func([]In) error

	// Buffered data
	queue deque.Deque[In]

	// Batch size that will trigger the onFlush function
	batchSize int

	// Flush interval
	flushInterval time.Duration

	// Max time flush should be retried. 0 means no limit.
	maxElapsedTime time.Duration

	// Max times between flush retries
	maxInterval time.Duration
}

func NewSink[In any](config *config.Config, name string) (self *Sink[In]) {
	self = new(Sink[In])

	self.Task = NewTask(config, name).
		WithSubtaskFunc(self.run)

	return
}

func (self *Sink[In]) WithBatchSize(batchSize int) *Sink[In] {
	self.batchSize = batchSize
	exp := uint(math.Round(math.Logb(float64(batchSize)))) + 1
	self.queue.SetMinCapacity(exp)
	return self
}

func (self *Sink[In]) WithInputChannel(v chan In) *Sink[In] {
	self.input = v
	return self
}

func (self *Sink[In]) WithOnFlush(interval time.Duration, f func([]In) error) *Sink[In] {
	self.flushInterval = interval
	self.onFlush = f
	return self
}

func (self *Sink[In]) WithBackoff(maxElapsedTime, maxInterval time.Duration) *Sink[In] {
	self.maxElapsedTime = maxElapsedTime
	self.maxInterval = maxInterval
	return self
}

func (self *Sink[In]) flush() {
	size := self.queue.Len()
	if size == 0 {
		return
	}

	data := make([]In, 0, size)
	for i := 0; i < size; i++ {
		data = append(data, self.queue.PopFront())
	}

	// Retrying continues during stop, only the final flush may be cut short
	err := NewRetry().
		WithContext(self.CtxRunning).
		WithMaxElapsedTime(self.maxElapsedTime).
		WithMaxInterval(self.maxInterval).
		WithOnError(func(err error) error {
			if errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}
			self.Log.WithError(err).Warn("Failed to flush data, retrying")
			return err
		}).
		Run(func() error {
			return self.onFlush(data)
		})
	if err != nil {
		self.Log.WithError(err).WithField("len", len(data)).Error("Failed to flush data, batch dropped")
	}
}

func (self *Sink[In]) run() (err error) {
	// Used to ensure data isn't stuck in the buffer for too long
	timer := time.NewTimer(self.flushInterval)
	defer timer.Stop()

	for {
		select {
		case <-self.StopChannel:
			// Drain what was already sent
			for {
				select {
				case in, ok := <-self.input:
					if !ok {
						self.flush()
						return nil
					}
					self.queue.PushBack(in)
				default:
					self.flush()
					return nil
				}
			}

		case in, ok := <-self.input:
			if !ok {
				// There will be no more data, flush everything there is and quit.
				self.flush()
				return nil
			}

			self.queue.PushBack(in)

			if self.queue.Len() >= self.batchSize {
				self.flush()
			}

		case <-timer.C:
			self.flush()
			timer.Reset(self.flushInterval)
		}
	}
}
