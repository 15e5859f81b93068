package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rentledger/syncer/src/utils/config"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("needs redis")
	}
	suite.Run(t, new(RedisTestSuite))
}

type RedisTestSuite struct {
	suite.Suite
	ctx       context.Context
	container testcontainers.Container
	config    *config.Config
}

func (s *RedisTestSuite) SetupSuite() {
	s.ctx = context.Background()
	testcontainers.SkipIfProviderIsNotHealthy(s.T())

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		s.T().Skipf("redis container unavailable: %v", err)
	}
	s.container = container

	host, err := container.Host(s.ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(s.ctx, "6379")
	s.Require().NoError(err)

	s.config = config.Default()
	s.config.Events.Redis.Host = host
	s.config.Events.Redis.Port = uint16(port.Int())
	s.config.Events.Redis.MaxElapsedTime = time.Second
	s.config.StopTimeout = 5 * time.Second
}

func (s *RedisTestSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *RedisTestSuite) TestSubscriberParsesEvents() {
	subscriber := NewSubscriber(s.config)
	s.Require().NoError(subscriber.Start())
	defer subscriber.StopWait()

	client, err := newRedisClient("test", &s.config.Events.Redis)
	s.Require().NoError(err)
	defer client.Close()

	s.Require().NoError(client.Publish(s.ctx, s.config.Events.MintedChannel, "garbage").Err())
	s.Require().NoError(client.Publish(s.ctx, s.config.Events.MintedChannel,
		`{"agreementId":"a1","landlord":"0xaa","mintedAt":"2026-01-02T03:04:05Z","txHash":"h1"}`).Err())
	s.Require().NoError(client.Publish(s.ctx, s.config.Events.TransferredChannel,
		`{"agreementId":"a1","from":"0xaa","to":"0xbb","txHash":"h2"}`).Err())

	var received []*ObligationEvent
	for len(received) < 2 {
		select {
		case event := <-subscriber.Output():
			received = append(received, event)
		case <-time.After(5 * time.Second):
			s.FailNow("events not received")
		}
	}

	s.Equal(ObligationMinted, received[0].Type)
	s.Equal(ObligationTransferred, received[1].Type)
	s.Equal(uint64(3), subscriber.monitor.State.EventsReceived.Load())
	s.Equal(uint64(1), subscriber.monitor.Errors.EventFailures.Load())
}

func (s *RedisTestSuite) TestPublisherForwardsExpired() {
	client, err := newRedisClient("test", &s.config.Events.Redis)
	s.Require().NoError(err)
	defer client.Close()

	pubsub := client.Subscribe(s.ctx, s.config.Events.ExpiredChannel)
	defer pubsub.Close()
	_, err = pubsub.Receive(s.ctx)
	s.Require().NoError(err)

	input := make(chan *AgreementExpired, 1)
	publisher := NewPublisher[*AgreementExpired](s.config, &s.config.Events.Redis, "expired-publisher").
		WithInputChannel(input).
		WithChannelName(s.config.Events.ExpiredChannel)
	s.Require().NoError(publisher.Start())
	defer publisher.StopWait()

	input <- &AgreementExpired{AgreementId: "a1", AgreementNumber: "AGR-2026-0001"}

	var msg *redis.Message
	select {
	case msg = <-pubsub.Channel():
	case <-time.After(5 * time.Second):
		s.FailNow("message not published")
	}

	var event AgreementExpired
	s.Require().NoError(json.Unmarshal([]byte(msg.Payload), &event))
	s.Equal("AGR-2026-0001", event.AgreementNumber)
	s.Eventually(func() bool {
		return publisher.monitor.State.MessagesPublished.Load() == 1
	}, time.Second, 10*time.Millisecond)
}
