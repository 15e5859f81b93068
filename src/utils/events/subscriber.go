package events

import (
	"context"
	"time"

	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/monitoring/report"
	"github.com/rentledger/syncer/src/utils/task"

	"github.com/redis/go-redis/v9"
)

// Receives obligation notifications from Redis pub/sub and passes them on.
// Malformed messages are logged and skipped.
type Subscriber struct {
	*task.Task

	redisConfig *config.Redis
	monitor     *report.ObligationReport

	client   *redis.Client
	pubsub   *redis.PubSub
	channels map[string]ObligationEventType

	output chan *ObligationEvent
}

func NewSubscriber(config *config.Config) (self *Subscriber) {
	self = new(Subscriber)
	self.redisConfig = &config.Events.Redis
	self.monitor = new(report.ObligationReport)
	self.channels = map[string]ObligationEventType{
		config.Events.MintedChannel:      ObligationMinted,
		config.Events.TransferredChannel: ObligationTransferred,
	}
	self.output = make(chan *ObligationEvent, config.Events.BufferSize)

	self.Task = task.NewTask(config, "event-subscriber").
		WithSubtaskFunc(self.run).
		WithOnBeforeStart(self.connect).
		WithOnStop(self.unsubscribe).
		WithOnAfterStop(self.disconnect)

	return
}

func (self *Subscriber) WithMonitor(v *report.ObligationReport) *Subscriber {
	self.monitor = v
	return self
}

// Closed once the subscriber stops
func (self *Subscriber) Output() chan *ObligationEvent {
	return self.output
}

func (self *Subscriber) connect() (err error) {
	self.client, err = newRedisClient(self.Name, self.redisConfig)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	channels := make([]string, 0, len(self.channels))
	for name := range self.channels {
		channels = append(channels, name)
	}

	self.pubsub = self.client.Subscribe(ctx, channels...)

	// Wait for the subscription confirmation
	_, err = self.pubsub.Receive(ctx)
	if err != nil {
		self.Log.WithError(err).Error("Failed to subscribe")
		return
	}

	self.Log.WithField("channels", channels).Info("Subscribed")
	return
}

func (self *Subscriber) unsubscribe() {
	if self.pubsub == nil {
		return
	}
	err := self.pubsub.Close()
	if err != nil {
		self.Log.WithError(err).Warn("Failed to close subscription")
	}
}

func (self *Subscriber) disconnect() {
	if self.client == nil {
		return
	}
	err := self.client.Close()
	if err != nil {
		self.Log.WithError(err).Error("Failed to close connection")
	}
}

func (self *Subscriber) run() error {
	defer close(self.output)

	messages := self.pubsub.Channel()
	for {
		select {
		case <-self.StopChannel:
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			self.monitor.State.EventsReceived.Inc()

			eventType, ok := self.channels[msg.Channel]
			if !ok {
				self.Log.WithField("channel", msg.Channel).Warn("Message from unexpected channel")
				continue
			}

			event, err := ParseObligationEvent(eventType, []byte(msg.Payload))
			if err != nil {
				self.monitor.Errors.EventFailures.Inc()
				self.Log.WithError(err).WithField("channel", msg.Channel).Error("Malformed event, skipping")
				continue
			}

			select {
			case <-self.StopChannel:
				return nil
			case self.output <- event:
			}
		}
	}
}
