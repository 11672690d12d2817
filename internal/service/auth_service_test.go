package service

import (
	"context"
	"testing"
	"time"

	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"
	"referral-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type authTestDeps struct {
	svc         *AuthServiceImpl
	accountRepo *mocks.MockAccountRepository
	hashSvc     *mocks.MockHashService
	tokenSvc    *mocks.MockTokenService
	ctrl        *gomock.Controller
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		hashSvc:     mocks.NewMockHashService(ctrl),
		tokenSvc:    mocks.NewMockTokenService(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewAuthService(d.accountRepo, d.hashSvc, d.tokenSvc, testReferralConfig(), zerolog.Nop())
	return d
}

func TestAuthService_Register_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.hashSvc.EXPECT().Hash("s3cret-pass").Return("$argon2id$hash", nil)
	d.accountRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, a *domain.Account) error {
			assert.Equal(t, "alice@example.com", a.Email)
			assert.Equal(t, "Alice", a.DisplayName)
			assert.Equal(t, domain.RoleUser, a.Role)
			assert.Equal(t, int64(0), a.Wallet.Balance)
			assert.Equal(t, "EUR", a.Wallet.Currency)
			return nil
		})

	account, err := d.svc.Register(ctx, ports.RegisterRequest{
		DisplayName: " Alice ",
		Email:       "Alice@Example.COM",
		Password:    "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", account.Email)
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("$argon2id$hash", nil)
	d.accountRepo.EXPECT().Create(ctx, gomock.Any()).Return(ports.ErrDuplicate)

	_, err := d.svc.Register(ctx, ports.RegisterRequest{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "s3cret-pass",
	})
	assertAppErrorCode(t, err, "AUTH_002")
}

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	accountID := uuid.New()
	expiry := time.Now().Add(time.Hour)

	d.accountRepo.EXPECT().GetByEmail(ctx, "alice@example.com").Return(&domain.Account{
		ID:           accountID,
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$hash",
		Role:         domain.RoleUser,
	}, nil)
	d.hashSvc.EXPECT().Verify("s3cret-pass", "$argon2id$hash").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(accountID, domain.RoleUser).Return("jwt-token", expiry, nil)

	token, expiresAt, err := d.svc.Login(ctx, " Alice@example.com ", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, expiry, expiresAt)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	d.accountRepo.EXPECT().GetByEmail(gomock.Any(), "ghost@example.com").Return(nil, nil)

	_, _, err := d.svc.Login(context.Background(), "ghost@example.com", "whatever")
	assertAppErrorCode(t, err, "AUTH_001")
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	d.accountRepo.EXPECT().GetByEmail(gomock.Any(), "alice@example.com").Return(&domain.Account{
		ID:           uuid.New(),
		PasswordHash: "$argon2id$hash",
	}, nil)
	d.hashSvc.EXPECT().Verify("wrong", "$argon2id$hash").Return(false, nil)

	_, _, err := d.svc.Login(context.Background(), "alice@example.com", "wrong")
	assertAppErrorCode(t, err, "AUTH_001")
}
