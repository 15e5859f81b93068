package obligation

import (
	"context"
	"sort"
	"time"

	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/ledger"
	"github.com/rentledger/syncer/src/utils/logger"
	"github.com/rentledger/syncer/src/utils/model"
	"github.com/rentledger/syncer/src/utils/repository"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const overviewKey = "overview"

type Portfolio struct {
	Owner            string
	Tokens           []*model.ObligationToken
	Agreements       []*model.Agreement
	TotalMonthlyRent decimal.Decimal
}

type Holder struct {
	Owner  string
	Tokens int
}

type Overview struct {
	TokenCount        int
	UniqueOwners      int
	TotalTransfers    int
	TransferredTokens int
	TopHolders        []Holder

	// Nil when the ledger couldn't be asked
	OnChainCount *uint64
}

func (self *Portfolio) clone() *Portfolio {
	out := *self
	out.Tokens = make([]*model.ObligationToken, 0, len(self.Tokens))
	for _, token := range self.Tokens {
		t := *token
		out.Tokens = append(out.Tokens, &t)
	}
	out.Agreements = make([]*model.Agreement, 0, len(self.Agreements))
	for _, agreement := range self.Agreements {
		a := *agreement
		out.Agreements = append(out.Agreements, &a)
	}
	return &out
}

func (self *Overview) clone() *Overview {
	out := *self
	out.TopHolders = append([]Holder(nil), self.TopHolders...)
	if self.OnChainCount != nil {
		count := *self.OnChainCount
		out.OnChainCount = &count
	}
	return &out
}

// Read only views over token ownership and agreement terms, cached until either changes.
// Callers get copies, the cached values are never shared.
type Analytics struct {
	log        *logrus.Entry
	repo       repository.Repository
	contract   *ledger.ObligationContract
	cache      *cache.Cache
	topHolders int
}

func NewAnalytics(config *config.Config, repo repository.Repository, contract *ledger.ObligationContract) (self *Analytics) {
	self = new(Analytics)
	self.log = logger.NewSublogger("analytics")
	self.repo = repo
	self.contract = contract
	self.topHolders = config.Analytics.TopHolders
	self.cache = cache.New(config.Analytics.CacheTTL, 2*config.Analytics.CacheTTL)
	return
}

func (self *Analytics) Invalidate() {
	self.cache.Flush()
}

func (self *Analytics) Portfolio(ctx context.Context, owner string) (out *Portfolio, err error) {
	owner = ledger.CanonicalAddress(owner)
	key := "portfolio:" + owner
	if cached, found := self.cache.Get(key); found {
		return cached.(*Portfolio).clone(), nil
	}

	out = &Portfolio{Owner: owner, TotalMonthlyRent: decimal.Zero}
	out.Tokens, err = self.repo.ListObligationTokens(ctx, repository.ObligationFilter{Owner: owner})
	if err != nil {
		return nil, err
	}

	for _, token := range out.Tokens {
		agreement, err := self.repo.GetAgreement(ctx, token.AgreementId)
		if err != nil {
			return nil, err
		}
		out.Agreements = append(out.Agreements, agreement)
		out.TotalMonthlyRent = out.TotalMonthlyRent.Add(agreement.MonthlyRent)
	}

	self.cache.Set(key, out, cache.DefaultExpiration)
	return out.clone(), nil
}

func (self *Analytics) Overview(ctx context.Context) (out *Overview, err error) {
	if cached, found := self.cache.Get(overviewKey); found {
		return cached.(*Overview).clone(), nil
	}

	// Database and ledger are asked at the same time
	var (
		tokens   []*model.ObligationToken
		count    uint64
		countErr error
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		tokens, err = self.repo.ListObligationTokens(groupCtx, repository.ObligationFilter{})
		return
	})
	group.Go(func() error {
		count, countErr = self.contract.GetObligationCount(groupCtx)
		return nil
	})
	err = group.Wait()
	if err != nil {
		return nil, err
	}

	out = &Overview{TokenCount: len(tokens)}
	perOwner := make(map[string]int)
	for _, token := range tokens {
		perOwner[ledger.CanonicalAddress(token.CurrentOwner)]++
		out.TotalTransfers += token.TransferCount
		if token.TransferCount > 0 {
			out.TransferredTokens++
		}
	}
	out.UniqueOwners = len(perOwner)

	out.TopHolders = make([]Holder, 0, len(perOwner))
	for owner, n := range perOwner {
		out.TopHolders = append(out.TopHolders, Holder{Owner: owner, Tokens: n})
	}
	sort.Slice(out.TopHolders, func(i, j int) bool {
		if out.TopHolders[i].Tokens != out.TopHolders[j].Tokens {
			return out.TopHolders[i].Tokens > out.TopHolders[j].Tokens
		}
		return out.TopHolders[i].Owner < out.TopHolders[j].Owner
	})
	if self.topHolders > 0 && len(out.TopHolders) > self.topHolders {
		out.TopHolders = out.TopHolders[:self.topHolders]
	}

	if countErr != nil {
		// Off-chain numbers are returned anyway, cached briefly
		self.log.WithError(countErr).Warn("Failed to get on-chain token count")
		self.cache.Set(overviewKey, out, time.Second)
		return out.clone(), nil
	}
	out.OnChainCount = &count

	self.cache.Set(overviewKey, out, cache.DefaultExpiration)
	return out.clone(), nil
}
