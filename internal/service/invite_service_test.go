package service

import (
	"context"
	"strings"
	"testing"

	"referral-ledger/config"
	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"
	"referral-ledger/internal/core/ports/mocks"
	"referral-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func testReferralConfig() config.ReferralConfig {
	return config.ReferralConfig{
		CommissionRateBps:   2000,
		MinWithdrawalAmount: 10,
		Currency:            "EUR",
		WelcomeBonusCredits: 3,
		InviteCodeAttempts:  10,
	}
}

type inviteTestDeps struct {
	svc            *InviteServiceImpl
	accountRepo    *mocks.MockAccountRepository
	redemptionRepo *mocks.MockRedemptionRepository
	commissionRepo *mocks.MockCommissionRepository
	transactor     *mocks.MockDBTransactor
	ctrl           *gomock.Controller
}

func setupInviteService(t *testing.T) *inviteTestDeps {
	ctrl := gomock.NewController(t)
	d := &inviteTestDeps{
		accountRepo:    mocks.NewMockAccountRepository(ctrl),
		redemptionRepo: mocks.NewMockRedemptionRepository(ctrl),
		commissionRepo: mocks.NewMockCommissionRepository(ctrl),
		transactor:     mocks.NewMockDBTransactor(ctrl),
		ctrl:           ctrl,
	}
	d.svc = NewInviteService(
		d.accountRepo, d.redemptionRepo, d.commissionRepo,
		d.transactor, testReferralConfig(), zerolog.Nop(),
	)
	return d
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

// ==================== GetOrCreateCode Tests ====================

func TestInviteService_GetOrCreateCode_Existing(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	code := "ALICE-X7K2P9"

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{
		ID:          accountID,
		DisplayName: "Alice",
		InviteCode:  &code,
	}, nil)

	info, err := d.svc.GetOrCreateCode(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, code, info.InviteCode)
	assert.Contains(t, info.ShareMessage, code)
	assert.InDelta(t, 0.20, info.CommissionRate, 1e-9)
}

func TestInviteService_GetOrCreateCode_Generates(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{
		ID:          accountID,
		DisplayName: "Alice Smith",
	}, nil)
	d.accountRepo.EXPECT().InviteCodeExists(ctx, gomock.Any()).Return(false, nil)
	d.accountRepo.EXPECT().SetInviteCode(ctx, accountID, gomock.Any()).Return(true, nil)

	info, err := d.svc.GetOrCreateCode(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(info.InviteCode, "ALICE-"),
		"prefix comes from the display name, got %s", info.InviteCode)
	assert.Len(t, info.InviteCode, len("ALICE-")+6)
}

func TestInviteService_GetOrCreateCode_RetriesOnCollision(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{
		ID:          accountID,
		DisplayName: "Bob",
	}, nil)
	// First candidate taken, second survives.
	d.accountRepo.EXPECT().InviteCodeExists(ctx, gomock.Any()).Return(true, nil)
	d.accountRepo.EXPECT().InviteCodeExists(ctx, gomock.Any()).Return(false, nil)
	d.accountRepo.EXPECT().SetInviteCode(ctx, accountID, gomock.Any()).Return(true, nil)

	info, err := d.svc.GetOrCreateCode(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(info.InviteCode, "BOB-"))
}

func TestInviteService_GetOrCreateCode_LostFirstRequestRace(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	winner := "ALICE-WINNER"

	// Both first requests read invite_code as nil; the guarded update
	// admits only one writer. The loser must return the winner's code,
	// never its own candidate.
	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{
		ID:          accountID,
		DisplayName: "Alice",
	}, nil)
	d.accountRepo.EXPECT().InviteCodeExists(ctx, gomock.Any()).Return(false, nil)
	d.accountRepo.EXPECT().SetInviteCode(ctx, accountID, gomock.Any()).Return(false, nil)
	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{
		ID:          accountID,
		DisplayName: "Alice",
		InviteCode:  &winner,
	}, nil)

	info, err := d.svc.GetOrCreateCode(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, winner, info.InviteCode)
}

func TestInviteService_GetOrCreateCode_Exhausted(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{
		ID:          accountID,
		DisplayName: "Carol",
	}, nil)
	d.accountRepo.EXPECT().InviteCodeExists(ctx, gomock.Any()).Return(true, nil).Times(10)

	_, err := d.svc.GetOrCreateCode(ctx, accountID)
	assertAppErrorCode(t, err, "INV_005")
}

// ==================== Redeem Tests ====================

func TestInviteService_Redeem_Success(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	redeemerID := uuid.New()
	inviterID := uuid.New()
	code := "ALICE-X7K2P9"
	tx := &mockTx{}

	d.accountRepo.EXPECT().GetByID(ctx, redeemerID).Return(&domain.Account{
		ID:             redeemerID,
		PremiumCredits: 1,
	}, nil)
	d.redemptionRepo.EXPECT().Exists(ctx, code, redeemerID).Return(false, nil)
	d.accountRepo.EXPECT().GetByInviteCode(ctx, code).Return(&domain.Account{
		ID:         inviterID,
		InviteCode: &code,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().SetInvitedBy(ctx, tx, redeemerID, inviterID).Return(true, nil)
	d.redemptionRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.accountRepo.EXPECT().AddPremiumCredits(ctx, tx, redeemerID, int64(3)).Return(nil)
	d.accountRepo.EXPECT().IncrementTotalInvites(ctx, tx, inviterID).Return(nil)

	result, err := d.svc.Redeem(ctx, redeemerID, code)
	require.NoError(t, err)
	assert.Equal(t, inviterID, result.InviterID)
	assert.Equal(t, int64(3), result.BonusCredits)
	assert.Equal(t, int64(4), result.CreditsBalance)
	assert.InDelta(t, 0.20, result.CommissionRate, 1e-9)
}

func TestInviteService_Redeem_NormalizesCode(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	redeemerID := uuid.New()
	inviterID := uuid.New()
	code := "ALICE-X7K2P9"
	tx := &mockTx{}

	d.accountRepo.EXPECT().GetByID(ctx, redeemerID).Return(&domain.Account{ID: redeemerID}, nil)
	// Lookups happen with the trimmed, uppercased code.
	d.redemptionRepo.EXPECT().Exists(ctx, code, redeemerID).Return(false, nil)
	d.accountRepo.EXPECT().GetByInviteCode(ctx, code).Return(&domain.Account{ID: inviterID}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().SetInvitedBy(ctx, tx, redeemerID, inviterID).Return(true, nil)
	d.redemptionRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.accountRepo.EXPECT().AddPremiumCredits(ctx, tx, redeemerID, int64(3)).Return(nil)
	d.accountRepo.EXPECT().IncrementTotalInvites(ctx, tx, inviterID).Return(nil)

	_, err := d.svc.Redeem(ctx, redeemerID, "  alice-x7k2p9  ")
	require.NoError(t, err)
}

func TestInviteService_Redeem_InvalidCode(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	redeemerID := uuid.New()

	d.accountRepo.EXPECT().GetByID(ctx, redeemerID).Return(&domain.Account{ID: redeemerID}, nil)
	d.redemptionRepo.EXPECT().Exists(ctx, "NOSUCH-CODE", redeemerID).Return(false, nil)
	d.accountRepo.EXPECT().GetByInviteCode(ctx, "NOSUCH-CODE").Return(nil, nil)

	_, err := d.svc.Redeem(ctx, redeemerID, "NOSUCH-CODE")
	assertAppErrorCode(t, err, "INV_001")
}

func TestInviteService_Redeem_SelfReferral(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	code := "SELF-ABC123"

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{ID: accountID}, nil)
	d.redemptionRepo.EXPECT().Exists(ctx, code, accountID).Return(false, nil)
	d.accountRepo.EXPECT().GetByInviteCode(ctx, code).Return(&domain.Account{
		ID:         accountID,
		InviteCode: &code,
	}, nil)

	_, err := d.svc.Redeem(ctx, accountID, code)
	assertAppErrorCode(t, err, "INV_002")
}

func TestInviteService_Redeem_AlreadyInvited(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	redeemerID := uuid.New()
	previousInviter := uuid.New()

	d.accountRepo.EXPECT().GetByID(ctx, redeemerID).Return(&domain.Account{
		ID:        redeemerID,
		InvitedBy: &previousInviter,
	}, nil)
	d.redemptionRepo.EXPECT().Exists(ctx, "OTHER-CODE12", redeemerID).Return(false, nil)

	_, err := d.svc.Redeem(ctx, redeemerID, "OTHER-CODE12")
	assertAppErrorCode(t, err, "INV_003")
}

func TestInviteService_Redeem_LostLinkRace(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	redeemerID := uuid.New()
	inviterID := uuid.New()
	code := "ALICE-X7K2P9"
	tx := &mockTx{}

	d.accountRepo.EXPECT().GetByID(ctx, redeemerID).Return(&domain.Account{ID: redeemerID}, nil)
	d.redemptionRepo.EXPECT().Exists(ctx, code, redeemerID).Return(false, nil)
	d.accountRepo.EXPECT().GetByInviteCode(ctx, code).Return(&domain.Account{ID: inviterID}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// A concurrent redemption claimed invited_by first.
	d.accountRepo.EXPECT().SetInvitedBy(ctx, tx, redeemerID, inviterID).Return(false, nil)

	_, err := d.svc.Redeem(ctx, redeemerID, code)
	assertAppErrorCode(t, err, "INV_003")
}

func TestInviteService_Redeem_DuplicateRedemption(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	redeemerID := uuid.New()
	inviterID := uuid.New()
	code := "ALICE-X7K2P9"
	tx := &mockTx{}

	d.accountRepo.EXPECT().GetByID(ctx, redeemerID).Return(&domain.Account{ID: redeemerID}, nil)
	d.redemptionRepo.EXPECT().Exists(ctx, code, redeemerID).Return(false, nil)
	d.accountRepo.EXPECT().GetByInviteCode(ctx, code).Return(&domain.Account{ID: inviterID}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.accountRepo.EXPECT().SetInvitedBy(ctx, tx, redeemerID, inviterID).Return(true, nil)
	d.redemptionRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(ports.ErrDuplicate)

	_, err := d.svc.Redeem(ctx, redeemerID, code)
	assertAppErrorCode(t, err, "INV_004")
}

func TestInviteService_Redeem_RepeatSameCode(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	redeemerID := uuid.New()
	previousInviter := uuid.New()
	code := "ALICE-X7K2P9"

	// The recorded redemption takes precedence over the single-inviter
	// rule: no inviter lookup, no transaction.
	d.accountRepo.EXPECT().GetByID(ctx, redeemerID).Return(&domain.Account{
		ID:        redeemerID,
		InvitedBy: &previousInviter,
	}, nil)
	d.redemptionRepo.EXPECT().Exists(ctx, code, redeemerID).Return(true, nil)

	_, err := d.svc.Redeem(ctx, redeemerID, code)
	assertAppErrorCode(t, err, "INV_004")
}

// ==================== Stats Tests ====================

func TestInviteService_Stats(t *testing.T) {
	d := setupInviteService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	code := "ALICE-X7K2P9"

	d.accountRepo.EXPECT().GetByID(ctx, accountID).Return(&domain.Account{
		ID:             accountID,
		InviteCode:     &code,
		TotalInvites:   4,
		PremiumCredits: 6,
		Wallet:         domain.Wallet{Balance: 30, Currency: "EUR", TotalEarned: 40, TotalWithdrawn: 10},
	}, nil)
	d.redemptionRepo.EXPECT().ListByInviter(ctx, accountID, recentInvitesMax).
		Return([]ports.RedemptionDetail{{RedeemerName: "Bob"}}, nil)
	d.commissionRepo.EXPECT().SumPaidByReferrer(ctx, accountID).Return(int64(40), nil)

	stats, err := d.svc.Stats(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalInvites)
	assert.Equal(t, int64(40), stats.CommissionsEarned)
	require.Len(t, stats.RecentInvites, 1)
	assert.Equal(t, "Bob", stats.RecentInvites[0].RedeemerName)
}
