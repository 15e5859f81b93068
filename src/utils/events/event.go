package events

import (
	"encoding/json"
	"fmt"
	"time"
)

type ObligationEventType string

const (
	ObligationMinted      ObligationEventType = "obligation.minted"
	ObligationTransferred ObligationEventType = "obligation.transferred"
)

// Ledger notification about an obligation token. Delivered at least once.
type ObligationEvent struct {
	Type ObligationEventType `json:"-"`

	AgreementId string `json:"agreementId"`
	TxHash      string `json:"txHash"`

	// Minted
	Landlord string    `json:"landlord,omitempty"`
	MintedAt time.Time `json:"mintedAt,omitempty"`

	// Transferred
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func (self *ObligationEvent) Validate() error {
	if self.AgreementId == "" {
		return fmt.Errorf("%s: missing agreementId", self.Type)
	}
	switch self.Type {
	case ObligationMinted:
		if self.Landlord == "" {
			return fmt.Errorf("%s: missing landlord", self.Type)
		}
	case ObligationTransferred:
		if self.From == "" || self.To == "" {
			return fmt.Errorf("%s: missing from/to", self.Type)
		}
	default:
		return fmt.Errorf("unknown event type: %q", self.Type)
	}
	return nil
}

func (self ObligationEvent) MarshalBinary() ([]byte, error) {
	return json.Marshal(self)
}

func (self *ObligationEvent) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, self)
}

// Parses a notification received on a channel carrying events of the given type
func ParseObligationEvent(eventType ObligationEventType, payload []byte) (out *ObligationEvent, err error) {
	out = new(ObligationEvent)
	err = out.UnmarshalBinary(payload)
	if err != nil {
		return nil, err
	}
	out.Type = eventType
	err = out.Validate()
	if err != nil {
		return nil, err
	}
	return
}

// Emitted when an agreement becomes EXPIRED, consumed by the review prompts
type AgreementExpired struct {
	AgreementId     string    `json:"agreementId"`
	AgreementNumber string    `json:"agreementNumber"`
	PropertyId      string    `json:"propertyId"`
	LandlordId      string    `json:"landlordId"`
	TenantId        string    `json:"tenantId"`
	ExpiredAt       time.Time `json:"expiredAt"`
}

func (self *AgreementExpired) MarshalBinary() ([]byte, error) {
	return json.Marshal(self)
}
