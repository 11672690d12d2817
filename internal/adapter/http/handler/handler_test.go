package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"referral-ledger/internal/adapter/http/dto"
	"referral-ledger/internal/adapter/http/middleware"
	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"
	"referral-ledger/internal/core/ports/mocks"
	"referral-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// jsonRequest builds a test context with a JSON body and, optionally, the
// authenticated account already set.
func jsonRequest(t *testing.T, method string, body interface{}, auth *uuid.UUID) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if auth != nil {
		c.Set(middleware.CtxAccountID, *auth)
	}
	return w, c
}

func responseData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

// --- Auth Handler Tests ---

func TestRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	accountID := uuid.New()
	mockAuth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "password123",
	}).Return(&domain.Account{
		ID:          accountID,
		DisplayName: "Alice",
		Email:       "alice@example.com",
	}, nil)

	w, c := jsonRequest(t, http.MethodPost, dto.RegisterRequest{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "password123",
	}, nil)

	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := responseData(t, w)
	assert.Equal(t, accountID.String(), data["account_id"])
	assert.Equal(t, "alice@example.com", data["email"])
}

func TestRegister_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	// Empty body => binding error
	w, c := jsonRequest(t, http.MethodPost, map[string]string{}, nil)
	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_EmailTaken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrEmailExists())

	w, c := jsonRequest(t, http.MethodPost, dto.RegisterRequest{
		DisplayName: "Alice",
		Email:       "alice@example.com",
		Password:    "password123",
	}, nil)

	h.Register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Now().Add(time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "alice@example.com", "password123").
		Return("jwt-token", expiry, nil)

	w, c := jsonRequest(t, http.MethodPost, dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	}, nil)

	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, "jwt-token", data["token"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", time.Time{}, apperror.ErrInvalidCredentials())

	w, c := jsonRequest(t, http.MethodPost, dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	}, nil)

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Invite Handler Tests ---

func TestGetCode_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockInvite := mocks.NewMockInviteService(ctrl)
	h := NewInviteHandler(mockInvite)

	accountID := uuid.New()
	mockInvite.EXPECT().GetOrCreateCode(gomock.Any(), accountID).Return(&ports.InviteCodeInfo{
		InviteCode:     "ALICE-X7K2P9",
		ShareMessage:   "Join with my code ALICE-X7K2P9",
		CommissionRate: 0.20,
	}, nil)

	w, c := jsonRequest(t, http.MethodGet, nil, &accountID)
	h.GetCode(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, "ALICE-X7K2P9", data["invite_code"])
	assert.Equal(t, 0.20, data["commission_rate"])
}

func TestGetCode_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewInviteHandler(mocks.NewMockInviteService(ctrl))

	w, c := jsonRequest(t, http.MethodGet, nil, nil)
	h.GetCode(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRedeem_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockInvite := mocks.NewMockInviteService(ctrl)
	h := NewInviteHandler(mockInvite)

	accountID := uuid.New()
	mockInvite.EXPECT().Redeem(gomock.Any(), accountID, "ALICE-X7K2P9").Return(&ports.RedemptionResult{
		InviterID:      uuid.New(),
		BonusCredits:   3,
		CreditsBalance: 3,
		CommissionRate: 0.20,
	}, nil)

	w, c := jsonRequest(t, http.MethodPost, dto.RedeemRequest{InviteCode: "ALICE-X7K2P9"}, &accountID)
	h.Redeem(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, float64(3), data["bonus_credits"])
}

func TestRedeem_SelfReferral(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockInvite := mocks.NewMockInviteService(ctrl)
	h := NewInviteHandler(mockInvite)

	accountID := uuid.New()
	mockInvite.EXPECT().Redeem(gomock.Any(), accountID, gomock.Any()).
		Return(nil, apperror.ErrSelfReferral())

	w, c := jsonRequest(t, http.MethodPost, dto.RedeemRequest{InviteCode: "ALICE-X7K2P9"}, &accountID)
	h.Redeem(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INV_002", resp["error_code"])
}

func TestRedeem_InvalidBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewInviteHandler(mocks.NewMockInviteService(ctrl))

	accountID := uuid.New()
	w, c := jsonRequest(t, http.MethodPost, map[string]string{"invite_code": "no spaces!!"}, &accountID)
	h.Redeem(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Wallet Handler Tests ---

func TestWalletOverview_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet, mocks.NewMockCommissionService(ctrl))

	accountID := uuid.New()
	mockWallet.EXPECT().Overview(gomock.Any(), accountID).Return(&ports.WalletOverview{
		Wallet: domain.Wallet{
			Balance:        35,
			Currency:       "EUR",
			TotalEarned:    60,
			TotalWithdrawn: 25,
		},
		RecentCommissions: []ports.CommissionDetail{
			{Commission: domain.Commission{
				ID:               uuid.New(),
				CommissionAmount: 10,
				Status:           domain.CommissionStatusPaid,
			}},
		},
		MinWithdrawalAmount: 10,
	}, nil)

	w, c := jsonRequest(t, http.MethodGet, nil, &accountID)
	h.Overview(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, float64(35), data["balance"])
	assert.Equal(t, float64(10), data["min_withdrawal_amount"])
	assert.Len(t, data["recent_commissions"], 1)
}

func TestUpdatePaymentInfo_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet, mocks.NewMockCommissionService(ctrl))

	accountID := uuid.New()
	mockWallet.EXPECT().UpdatePaymentInfo(gomock.Any(), accountID, domain.PaymentInfo{
		PreferredMethod: domain.PaymentMethodPayPal,
		Details:         domain.PaymentDetails{PayPalEmail: "alice@example.com"},
	}).Return(nil)

	w, c := jsonRequest(t, http.MethodPut, dto.PaymentInfoRequest{
		PreferredMethod: "paypal",
		PayPalEmail:     "alice@example.com",
	}, &accountID)
	h.UpdatePaymentInfo(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdatePaymentInfo_UnknownMethod(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), mocks.NewMockCommissionService(ctrl))

	accountID := uuid.New()
	w, c := jsonRequest(t, http.MethodPut, dto.PaymentInfoRequest{
		PreferredMethod: "crypto",
	}, &accountID)
	h.UpdatePaymentInfo(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Withdrawal Handler Tests ---

func TestWithdrawalCreate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(mockWithdrawal)

	accountID := uuid.New()
	mockWithdrawal.EXPECT().Create(gomock.Any(), accountID, int64(25)).Return(&domain.WithdrawalRequest{
		ID:       uuid.New(),
		UserID:   accountID,
		Amount:   25,
		Currency: "EUR",
		Status:   domain.WithdrawalStatusPending,
	}, nil)

	w, c := jsonRequest(t, http.MethodPost, dto.WithdrawRequest{Amount: 25}, &accountID)
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := responseData(t, w)
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, float64(25), data["amount"])
}

func TestWithdrawalCreate_InsufficientBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(mockWithdrawal)

	accountID := uuid.New()
	mockWithdrawal.EXPECT().Create(gomock.Any(), accountID, int64(500)).
		Return(nil, apperror.ErrInsufficientBalance())

	w, c := jsonRequest(t, http.MethodPost, dto.WithdrawRequest{Amount: 500}, &accountID)
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "WDR_001", resp["error_code"])
}

func TestWithdrawalCancel_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWithdrawalHandler(mocks.NewMockWithdrawalService(ctrl))

	accountID := uuid.New()
	w, c := jsonRequest(t, http.MethodDelete, nil, &accountID)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	h.Cancel(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithdrawalCancel_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(mockWithdrawal)

	accountID := uuid.New()
	requestID := uuid.New()
	mockWithdrawal.EXPECT().Cancel(gomock.Any(), requestID, accountID).Return(nil)

	w, c := jsonRequest(t, http.MethodDelete, nil, &accountID)
	c.Params = gin.Params{{Key: "id", Value: requestID.String()}}
	h.Cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Admin Handler Tests ---

func TestAdminApprove_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewAdminHandler(mockWithdrawal, mocks.NewMockCommissionService(ctrl))

	adminID := uuid.New()
	requestID := uuid.New()
	transactionID := "tr_789"
	mockWithdrawal.EXPECT().Approve(gomock.Any(), requestID, adminID, "tr_789").
		Return(&domain.WithdrawalRequest{
			ID:            requestID,
			Amount:        25,
			Status:        domain.WithdrawalStatusCompleted,
			TransactionID: &transactionID,
		}, nil)

	w, c := jsonRequest(t, http.MethodPost, dto.ApproveWithdrawalRequest{TransactionID: "tr_789"}, &adminID)
	c.Params = gin.Params{{Key: "id", Value: requestID.String()}}
	h.ApproveWithdrawal(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, "tr_789", data["transaction_id"])
}

func TestAdminReject_AlreadyProcessed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawal := mocks.NewMockWithdrawalService(ctrl)
	h := NewAdminHandler(mockWithdrawal, mocks.NewMockCommissionService(ctrl))

	adminID := uuid.New()
	requestID := uuid.New()
	mockWithdrawal.EXPECT().Reject(gomock.Any(), requestID, adminID, "bad details").
		Return(nil, apperror.ErrInvalidState("completed"))

	w, c := jsonRequest(t, http.MethodPost, dto.RejectWithdrawalRequest{Reason: "bad details"}, &adminID)
	c.Params = gin.Params{{Key: "id", Value: requestID.String()}}
	h.RejectWithdrawal(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminListWithdrawals_BadStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAdminHandler(mocks.NewMockWithdrawalService(ctrl), mocks.NewMockCommissionService(ctrl))

	adminID := uuid.New()
	w, c := jsonRequest(t, http.MethodGet, nil, &adminID)
	c.Request = httptest.NewRequest(http.MethodGet, "/?status=bogus", nil)
	h.ListWithdrawals(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminCommissionStats_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCommission := mocks.NewMockCommissionService(ctrl)
	h := NewAdminHandler(mocks.NewMockWithdrawalService(ctrl), mockCommission)

	mockCommission.EXPECT().AdminStats(gomock.Any()).Return(&ports.CommissionAdminStats{
		ByStatus: []ports.CommissionStatusStat{
			{Status: domain.CommissionStatusPaid, Count: 12, TotalAmount: 120},
		},
		TopReferrers: []ports.ReferrerStat{
			{UserID: uuid.New(), DisplayName: "Alice", TotalEarned: 80, ReferralCount: 8},
		},
	}, nil)

	adminID := uuid.New()
	w, c := jsonRequest(t, http.MethodGet, nil, &adminID)
	h.CommissionStats(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Len(t, data["by_status"], 1)
	assert.Len(t, data["top_referrers"], 1)
}

// --- Webhook Handler Tests ---

func TestWebhookReceive_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockProc := mocks.NewMockWebhookProcessor(ctrl)
	h := NewWebhookHandler(mockProc)

	payload := []byte(`{"id":"evt_1","type":"invoice.payment_succeeded"}`)
	mockProc.EXPECT().Process(gomock.Any(), payload, "t=1,v1=abc").Return(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	c.Request.Header.Set(SignatureHeader, "t=1,v1=abc")

	h.Receive(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, true, data["received"])
}

func TestWebhookReceive_BadSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockProc := mocks.NewMockWebhookProcessor(ctrl)
	h := NewWebhookHandler(mockProc)

	mockProc.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(apperror.ErrInvalidWebhookSignature())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(`{}`)))

	h.Receive(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "WHK_001", resp["error_code"])
}

func TestWebhookReceive_ProcessingFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockProc := mocks.NewMockWebhookProcessor(ctrl)
	h := NewWebhookHandler(mockProc)

	mockProc.EXPECT().Process(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(apperror.ErrWebhookProcessing(errors.New("db down")))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(`{}`)))

	h.Receive(c)

	// 5xx so the provider redelivers.
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// --- Health Check Tests ---

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Ping(_ context.Context) error { return f.err }
func (f fakeChecker) Name() string                 { return f.name }

func TestHealthCheck_AllHealthy(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(fakeChecker{name: "postgresql"}, fakeChecker{name: "redis"})(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(fakeChecker{name: "postgresql"}, fakeChecker{name: "redis", err: errors.New("connection refused")})(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
}
