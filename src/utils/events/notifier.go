package events

import (
	"context"
	"time"

	"github.com/rentledger/syncer/src/utils/model"
)

// Queues agreement.expired notifications for the publisher
type ExpiryNotifier struct {
	output chan *AgreementExpired
}

func NewExpiryNotifier(bufferSize int) *ExpiryNotifier {
	return &ExpiryNotifier{output: make(chan *AgreementExpired, bufferSize)}
}

func (self *ExpiryNotifier) Output() chan *AgreementExpired {
	return self.output
}

// Blocks while the buffer is full
func (self *ExpiryNotifier) PromptReview(ctx context.Context, agreement *model.Agreement) error {
	event := &AgreementExpired{
		AgreementId:     agreement.Id,
		AgreementNumber: agreement.AgreementNumber,
		PropertyId:      agreement.PropertyId,
		LandlordId:      agreement.LandlordId,
		TenantId:        agreement.TenantId,
		ExpiredAt:       time.Now().UTC(),
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case self.output <- event:
		return nil
	}
}
