package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestGormTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("needs postgres")
	}
	suite.Run(t, new(GormTestSuite))
}

type GormTestSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	repo      *Gorm
}

func (s *GormTestSuite) SetupSuite() {
	s.ctx = context.Background()

	dsn := os.Getenv("RENTAL_TEST_PG_DSN")
	if dsn == "" {
		testcontainers.SkipIfProviderIsNotHealthy(s.T())

		container, err := tcpostgres.Run(s.ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("rental"),
			tcpostgres.WithUsername("rental"),
			tcpostgres.WithPassword("rental"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			s.T().Skipf("postgres container unavailable: %v", err)
		}
		s.container = container

		dsn, err = container.ConnectionString(s.ctx, "sslmode=disable")
		s.Require().NoError(err)
	}

	sqlDB, err := sql.Open("postgres", dsn)
	s.Require().NoError(err)
	defer sqlDB.Close()
	_, err = model.MigrateDB(sqlDB)
	s.Require().NoError(err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	s.Require().NoError(err)
	s.repo = NewGorm(db)
}

func (s *GormTestSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *GormTestSuite) SetupTest() {
	err := s.repo.DB().Exec("TRUNCATE TABLE payments, escrows, obligation_tokens, audit_records, agreements CASCADE").Error
	s.Require().NoError(err)
}

func newAgreement(number string) *model.Agreement {
	start := time.Now().UTC().Truncate(time.Second)
	return &model.Agreement{
		Id:              uuid.NewString(),
		AgreementNumber: number,
		PropertyId:      "property-1",
		LandlordId:      "landlord-1",
		TenantId:        "tenant-1",
		LandlordAddress: "0x00000000000000000000000000000000000000aa",
		TenantAddress:   "0x00000000000000000000000000000000000000bb",
		MonthlyRent:     decimal.RequireFromString("1000"),
		SecurityDeposit: decimal.RequireFromString("2000"),
		CommissionRate:  decimal.RequireFromString("5"),
		StartDate:       start,
		EndDate:         start.AddDate(1, 0, 0),
		Status:          model.AgreementStatusDraft,
	}
}

func (s *GormTestSuite) TestAgreementRoundTrip() {
	a := newAgreement("AGR-2026-0001")
	s.Require().NoError(s.repo.CreateAgreement(s.ctx, a))

	got, err := s.repo.GetAgreement(s.ctx, a.Id)
	s.Require().NoError(err)
	s.Equal(a.AgreementNumber, got.AgreementNumber)
	s.True(a.MonthlyRent.Equal(got.MonthlyRent))
	s.Equal(model.AgreementStatusDraft, got.Status)

	count, err := s.repo.CountAgreements(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *GormTestSuite) TestNotFound() {
	_, err := s.repo.GetAgreement(s.ctx, uuid.NewString())
	s.Require().ErrorIs(err, fault.ErrNotFound)

	_, err = s.repo.GetEscrowByAgreement(s.ctx, uuid.NewString())
	s.Require().ErrorIs(err, fault.ErrNotFound)
}

func (s *GormTestSuite) TestDuplicateAgreementNumber() {
	s.Require().NoError(s.repo.CreateAgreement(s.ctx, newAgreement("AGR-2026-0001")))
	err := s.repo.CreateAgreement(s.ctx, newAgreement("AGR-2026-0001"))
	s.Require().ErrorIs(err, fault.ErrConflict)
}

func (s *GormTestSuite) TestLedgerLinkageRejected() {
	a := newAgreement("AGR-2026-0001")
	id := "7"
	a.LedgerAgreementId = &id
	err := s.repo.CreateAgreement(s.ctx, a)
	s.Require().ErrorIs(err, model.ErrLedgerLinkage)
}

func (s *GormTestSuite) TestTransactionRollback() {
	a := newAgreement("AGR-2026-0001")
	s.Require().NoError(s.repo.CreateAgreement(s.ctx, a))

	boom := errors.New("boom")
	err := s.repo.Transaction(s.ctx, func(tx Repository) error {
		escrow := &model.Escrow{
			Id:             uuid.NewString(),
			AgreementId:    a.Id,
			Amount:         a.SecurityDeposit,
			ArbiterAddress: "0x0000000000000000000000000000000000000a0b",
			Status:         model.EscrowStatusPending,
		}
		require.NoError(s.T(), tx.CreateEscrow(s.ctx, escrow))
		return boom
	})
	s.Require().ErrorIs(err, boom)

	_, err = s.repo.GetEscrowByAgreement(s.ctx, a.Id)
	s.Require().ErrorIs(err, fault.ErrNotFound)
}

func (s *GormTestSuite) TestOneEscrowPerAgreement() {
	a := newAgreement("AGR-2026-0001")
	s.Require().NoError(s.repo.CreateAgreement(s.ctx, a))

	newEscrow := func() *model.Escrow {
		return &model.Escrow{
			Id:             uuid.NewString(),
			AgreementId:    a.Id,
			Amount:         a.SecurityDeposit,
			ArbiterAddress: "0x0000000000000000000000000000000000000a0b",
			Status:         model.EscrowStatusPending,
		}
	}
	s.Require().NoError(s.repo.CreateEscrow(s.ctx, newEscrow()))
	s.Require().ErrorIs(s.repo.CreateEscrow(s.ctx, newEscrow()), fault.ErrConflict)
}

func (s *GormTestSuite) TestPaymentsNewestFirst() {
	a := newAgreement("AGR-2026-0001")
	s.Require().NoError(s.repo.CreateAgreement(s.ctx, a))

	for i := 0; i < 3; i++ {
		err := s.repo.CreatePayment(s.ctx, &model.Payment{
			Id:          uuid.NewString(),
			AgreementId: a.Id,
			Amount:      decimal.NewFromInt(int64(100 * (i + 1))),
			PaymentDate: time.Now().AddDate(0, i, 0),
			Method:      "transfer",
			Status:      model.PaymentStatusCompleted,
		})
		s.Require().NoError(err)
	}

	payments, err := s.repo.ListPayments(s.ctx, a.Id)
	s.Require().NoError(err)
	s.Require().Len(payments, 3)
	s.True(payments[0].Amount.Equal(decimal.NewFromInt(300)))
}

func (s *GormTestSuite) TestListTokensByOwner() {
	for i, owner := range []string{"0xaa", "0xbb", "0xaa"} {
		a := newAgreement("AGR-2026-000" + string(rune('1'+i)))
		s.Require().NoError(s.repo.CreateAgreement(s.ctx, a))
		err := s.repo.CreateObligationToken(s.ctx, &model.ObligationToken{
			Id:                  uuid.NewString(),
			AgreementId:         a.Id,
			CurrentOwner:        owner,
			OriginalLandlord:    owner,
			MintTransactionHash: "hash",
			MintedAt:            time.Now(),
			Status:              model.ObligationStatusActive,
		})
		s.Require().NoError(err)
	}

	tokens, err := s.repo.ListObligationTokens(s.ctx, ObligationFilter{Owner: "0xaa"})
	s.Require().NoError(err)
	s.Len(tokens, 2)
}
