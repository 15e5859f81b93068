package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rentledger/syncer/src/utils/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestTaskTestSuite(t *testing.T) {
	suite.Run(t, new(TaskTestSuite))
}

type TaskTestSuite struct {
	suite.Suite
	config *config.Config
}

func (s *TaskTestSuite) SetupSuite() {
	s.config = config.Default()
	s.config.StopTimeout = 5 * time.Second
}

func (s *TaskTestSuite) TestLifecycle() {
	var ran sync.WaitGroup
	ran.Add(1)

	task := NewTask(s.config, "test").
		WithSubtaskFunc(func() error {
			ran.Done()
			return nil
		})

	require.NoError(s.T(), task.Start())
	ran.Wait()
	task.StopWait()

	<-task.CtxRunning.Done()
	require.True(s.T(), task.IsStopping.Load())
}

func (s *TaskTestSuite) TestWorkerPool() {
	task := NewTask(s.config, "workers").WithWorkerPool(2, 10)
	require.NoError(s.T(), task.Start())

	var (
		mtx  sync.Mutex
		done int
	)
	for i := 0; i < 20; i++ {
		task.SubmitToWorker(func() {
			mtx.Lock()
			done++
			mtx.Unlock()
		})
	}
	task.StopWait()

	require.Equal(s.T(), 20, done)
}

func (s *TaskTestSuite) TestSinkFlushesOnBatchSizeAndStop() {
	input := make(chan int)
	var (
		mtx     sync.Mutex
		batches [][]int
	)

	sink := NewSink[int](s.config, "sink").
		WithInputChannel(input).
		WithBatchSize(3).
		WithOnFlush(time.Hour, func(data []int) error {
			mtx.Lock()
			defer mtx.Unlock()
			batches = append(batches, data)
			return nil
		}).
		WithBackoff(time.Second, 10*time.Millisecond)
	require.NoError(s.T(), sink.Start())

	for i := 1; i <= 4; i++ {
		input <- i
	}
	sink.StopWait()

	mtx.Lock()
	defer mtx.Unlock()
	require.Equal(s.T(), [][]int{{1, 2, 3}, {4}}, batches)
}

func (s *TaskTestSuite) TestRetryStopsOnPermanentError() {
	calls := 0
	err := NewRetry().
		WithContext(context.Background()).
		WithMaxElapsedTime(time.Second).
		WithMaxInterval(time.Millisecond).
		WithOnError(func(err error) error {
			return backoff.Permanent(err)
		}).
		Run(func() error {
			calls++
			return errors.New("nope")
		})

	require.Error(s.T(), err)
	require.Equal(s.T(), 1, calls)
}

func (s *TaskTestSuite) TestRetryUntilSuccess() {
	calls := 0
	err := NewRetry().
		WithMaxElapsedTime(time.Second).
		WithMaxInterval(time.Millisecond).
		Run(func() error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		})

	require.NoError(s.T(), err)
	require.Equal(s.T(), 3, calls)
}
