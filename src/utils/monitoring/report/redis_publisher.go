package report

import (
	"go.uber.org/atomic"
)

type RedisPublisherErrors struct {
	Encoding          atomic.Uint64 `json:"encoding"`
	Publish           atomic.Uint64 `json:"publish"`
	PersistentFailure atomic.Uint64 `json:"persistent"`
}

// Notifications published to Redis, e.g. agreement.expired
type RedisPublisherState struct {
	MessagesPublished              atomic.Uint64 `json:"messages_published"`
	LastSuccessfulMessageTimestamp atomic.Int64  `json:"last_successful_message_timestamp"`
}

type RedisPublisherReport struct {
	State  RedisPublisherState  `json:"state"`
	Errors RedisPublisherErrors `json:"errors"`
}
