package events

import (
	"context"
	"encoding"
	"time"

	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/monitoring/report"
	"github.com/rentledger/syncer/src/utils/task"

	"github.com/redis/go-redis/v9"
)

// Forwards messages to a Redis channel
type Publisher[In encoding.BinaryMarshaler] struct {
	*task.Task

	redisConfig *config.Redis
	monitor     *report.RedisPublisherReport

	client      *redis.Client
	channelName string
	input       chan In
}

func NewPublisher[In encoding.BinaryMarshaler](config *config.Config, redisConfig *config.Redis, name string) (self *Publisher[In]) {
	self = new(Publisher[In])
	self.redisConfig = redisConfig
	self.monitor = new(report.RedisPublisherReport)

	self.Task = task.NewTask(config, name).
		WithSubtaskFunc(self.run).
		WithOnBeforeStart(self.connect).
		WithOnAfterStop(self.disconnect)

	return
}

func (self *Publisher[In]) WithInputChannel(v chan In) *Publisher[In] {
	self.input = v
	return self
}

func (self *Publisher[In]) WithChannelName(v string) *Publisher[In] {
	self.channelName = v
	return self
}

func (self *Publisher[In]) WithMonitor(v *report.RedisPublisherReport) *Publisher[In] {
	self.monitor = v
	return self
}

func (self *Publisher[In]) connect() (err error) {
	self.client, err = newRedisClient(self.Name, self.redisConfig)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = self.client.Ping(ctx).Err()
	if err != nil {
		self.Log.WithError(err).Error("Failed to ping Redis")
	}
	return
}

func (self *Publisher[In]) disconnect() {
	err := self.client.Close()
	if err != nil {
		self.Log.WithError(err).Error("Failed to close connection")
	}
}

func (self *Publisher[In]) run() (err error) {
	for {
		select {
		case <-self.StopChannel:
			return nil
		case payload, ok := <-self.input:
			if !ok {
				return nil
			}
			self.publish(payload)
		}
	}
}

func (self *Publisher[In]) publish(payload In) {
	data, err := payload.MarshalBinary()
	if err != nil {
		self.Log.WithError(err).Error("Failed to encode message, dropped")
		self.monitor.Errors.Encoding.Inc()
		return
	}

	err = task.NewRetry().
		WithContext(self.Ctx).
		WithMaxElapsedTime(self.redisConfig.MaxElapsedTime).
		WithMaxInterval(self.redisConfig.MaxInterval).
		WithOnError(func(err error) error {
			self.Log.WithError(err).Warn("Failed to publish message, retrying")
			self.monitor.Errors.Publish.Inc()
			return err
		}).
		Run(func() error {
			return self.client.Publish(self.Ctx, self.channelName, data).Err()
		})
	if err != nil {
		self.Log.WithError(err).Error("Failed to publish message, giving up")
		self.monitor.Errors.PersistentFailure.Inc()
		return
	}

	self.monitor.State.MessagesPublished.Inc()
	self.monitor.State.LastSuccessfulMessageTimestamp.Store(time.Now().Unix())
}
