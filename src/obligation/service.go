package obligation

import (
	"context"
	"errors"
	"time"

	"github.com/rentledger/syncer/src/utils/audit"
	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/ledger"
	"github.com/rentledger/syncer/src/utils/logger"
	"github.com/rentledger/syncer/src/utils/model"
	"github.com/rentledger/syncer/src/utils/monitoring/report"
	"github.com/rentledger/syncer/src/utils/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const entityType = "obligation_token"

// Token as stored, together with what the ledger says about it
type TokenWithLedger struct {
	Token         *model.ObligationToken
	ExistsOnChain bool

	// Nil when the token isn't on the ledger
	OnChain *ledger.ObligationView
}

// One obligation token per agreement. Owners are stored in checksummed form.
type Service struct {
	log       *logrus.Entry
	repo      repository.Repository
	contract  *ledger.ObligationContract
	analytics *Analytics
	monitor   *report.ObligationReport
	recorder  audit.Recorder
}

func NewService(repo repository.Repository, contract *ledger.ObligationContract) (self *Service) {
	self = new(Service)
	self.log = logger.NewSublogger("obligation")
	self.repo = repo
	self.contract = contract
	self.monitor = new(report.ObligationReport)
	self.recorder = audit.Nop{}
	return
}

func (self *Service) WithMonitor(v *report.ObligationReport) *Service {
	self.monitor = v
	return self
}

func (self *Service) WithAuditRecorder(v audit.Recorder) *Service {
	self.recorder = v
	return self
}

// Cached views are dropped whenever ownership changes
func (self *Service) WithAnalytics(v *Analytics) *Service {
	self.analytics = v
	return self
}

func (self *Service) invalidate() {
	if self.analytics != nil {
		self.analytics.Invalidate()
	}
}

// Existence is checked before the ledger call, two concurrent mints may both pass it.
// The unique index on agreement_id stops the second row.
func (self *Service) MintNftForAgreement(ctx context.Context, agreementId, landlord string) (*model.ObligationToken, error) {
	return audit.Track(ctx, self.recorder, "obligation.mint", entityType, "", nil, func() (*model.ObligationToken, error) {
		if !ledger.IsValidAddress(landlord) {
			return nil, fault.Validation("invalid landlord address %q", landlord)
		}

		_, err := self.repo.GetObligationToken(ctx, agreementId)
		if err == nil {
			return nil, fault.Conflict("obligation token for agreement %s already minted", agreementId)
		}
		if !errors.Is(err, fault.ErrNotFound) {
			return nil, err
		}

		_, err = self.repo.GetAgreement(ctx, agreementId)
		if err != nil {
			return nil, err
		}

		hash, err := self.contract.Mint(ctx, agreementId, landlord)
		if err != nil {
			return nil, err
		}

		token, err := self.storeMint(ctx, agreementId, landlord, hash, time.Now())
		if err != nil {
			self.log.WithError(err).WithField("agreement_id", agreementId).WithField("hash", hash).
				Error("Token minted on ledger but not stored")
			return nil, err
		}
		return token, nil
	})
}

func (self *Service) storeMint(ctx context.Context, agreementId, landlord, hash string, mintedAt time.Time) (*model.ObligationToken, error) {
	owner := ledger.CanonicalAddress(landlord)
	token := &model.ObligationToken{
		Id:                  uuid.NewString(),
		AgreementId:         agreementId,
		CurrentOwner:        owner,
		OriginalLandlord:    owner,
		MintTransactionHash: hash,
		MintedAt:            mintedAt.UTC(),
		Status:              model.ObligationStatusActive,
	}
	err := self.repo.CreateObligationToken(ctx, token)
	if err != nil {
		return nil, err
	}

	self.monitor.State.Minted.Inc()
	self.invalidate()
	self.log.WithField("agreement_id", agreementId).WithField("owner", owner).Info("Obligation token minted")
	return token, nil
}

func (self *Service) TransferNft(ctx context.Context, agreementId, from, to string) (*model.ObligationToken, error) {
	token, err := self.repo.GetObligationToken(ctx, agreementId)
	if err != nil {
		return nil, err
	}

	return audit.Track(ctx, self.recorder, "obligation.transfer", entityType, token.Id, token, func() (*model.ObligationToken, error) {
		if !ledger.SameAddress(token.CurrentOwner, from) {
			return nil, fault.Unauthorized("%s doesn't own the obligation token of agreement %s", from, agreementId)
		}
		if !ledger.IsValidAddress(to) {
			return nil, fault.Validation("invalid recipient address %q", to)
		}

		hash, err := self.contract.Transfer(ctx, agreementId, from, to)
		if err != nil {
			return nil, err
		}

		err = self.storeTransfer(ctx, token, to, hash, time.Now())
		if err != nil {
			return nil, err
		}
		return token, nil
	})
}

func (self *Service) storeTransfer(ctx context.Context, token *model.ObligationToken, to, hash string, at time.Time) error {
	from := token.CurrentOwner
	at = at.UTC()
	token.CurrentOwner = ledger.CanonicalAddress(to)
	token.TransferCount++
	token.LastTransferTransactionHash = &hash
	token.LastTransferredAt = &at

	err := self.repo.SaveObligationToken(ctx, token)
	if err != nil {
		return err
	}

	self.monitor.State.Transferred.Inc()
	self.invalidate()
	self.log.WithField("agreement_id", token.AgreementId).
		WithField("from", from).
		WithField("to", token.CurrentOwner).
		WithField("count", token.TransferCount).
		Info("Obligation token transferred")
	return nil
}

// Ledger owner wins. Nothing changes when the ledger knows no owner or refuses to tell.
func (self *Service) SyncNftOwnership(ctx context.Context, agreementId string) (out *model.ObligationToken, err error) {
	defer func() {
		if err != nil {
			self.monitor.Errors.SyncFailures.Inc()
		}
	}()

	out, err = self.repo.GetObligationToken(ctx, agreementId)
	if err != nil {
		return nil, err
	}

	owner, err := self.contract.GetOwner(ctx, agreementId)
	if errors.Is(err, ledger.ErrSimulationRejected) {
		self.log.WithError(err).WithField("agreement_id", agreementId).Debug("Ledger knows no owner")
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if owner == "" || ledger.SameAddress(owner, out.CurrentOwner) {
		return
	}

	self.monitor.State.OwnershipDrift.Inc()
	self.log.WithField("agreement_id", agreementId).
		WithField("stored_owner", out.CurrentOwner).
		WithField("ledger_owner", owner).
		Warn("Ownership drift, taking the ledger owner")

	out.CurrentOwner = ledger.CanonicalAddress(owner)
	err = self.repo.SaveObligationToken(ctx, out)
	if err != nil {
		return nil, err
	}

	self.invalidate()
	return
}

func (self *Service) GetToken(ctx context.Context, agreementId string) (*model.ObligationToken, error) {
	return self.repo.GetObligationToken(ctx, agreementId)
}

func (self *Service) GetTokenWithLedger(ctx context.Context, agreementId string) (out *TokenWithLedger, err error) {
	out = new(TokenWithLedger)
	out.Token, err = self.repo.GetObligationToken(ctx, agreementId)
	if err != nil {
		return nil, err
	}

	out.ExistsOnChain, err = self.contract.HasObligation(ctx, agreementId)
	if err != nil {
		return nil, err
	}
	if !out.ExistsOnChain {
		return
	}

	out.OnChain, err = self.contract.GetObligation(ctx, agreementId)
	if err != nil {
		return nil, err
	}
	return
}
