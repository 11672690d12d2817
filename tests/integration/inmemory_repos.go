package integration

import (
	"context"
	"sync"
	"time"

	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[uuid.UUID]*domain.Account)}
}

// copyAccount returns a snapshot so callers never alias the stored struct.
func copyAccount(a *domain.Account) *domain.Account {
	cp := *a
	return &cp
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == account.Email {
			return ports.ErrDuplicate
		}
	}
	r.accounts[account.ID] = copyAccount(account)
	return nil
}

func (r *inMemoryAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	return copyAccount(a), nil
}

func (r *inMemoryAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.Email == email {
			return copyAccount(a), nil
		}
	}
	return nil, nil
}

func (r *inMemoryAccountRepo) GetByInviteCode(ctx context.Context, code string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.InviteCode != nil && *a.InviteCode == code {
			return copyAccount(a), nil
		}
	}
	return nil, nil
}

func (r *inMemoryAccountRepo) GetByCustomerID(ctx context.Context, customerID string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.ProviderCustomerID != nil && *a.ProviderCustomerID == customerID {
			return copyAccount(a), nil
		}
	}
	return nil, nil
}

func (r *inMemoryAccountRepo) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.InviteCode != nil && *a.InviteCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryAccountRepo) SetInviteCode(ctx context.Context, id uuid.UUID, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID != id && a.InviteCode != nil && *a.InviteCode == code {
			return false, ports.ErrDuplicate
		}
	}
	a, ok := r.accounts[id]
	if !ok || a.InviteCode != nil {
		return false, nil
	}
	a.InviteCode = &code
	return true, nil
}

func (r *inMemoryAccountRepo) SetInvitedBy(ctx context.Context, tx pgx.Tx, id uuid.UUID, inviterID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok || a.InvitedBy != nil {
		return false, nil
	}
	a.InvitedBy = &inviterID
	return true, nil
}

func (r *inMemoryAccountRepo) AddPremiumCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, credits int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.PremiumCredits += credits
	}
	return nil
}

func (r *inMemoryAccountRepo) IncrementTotalInvites(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.TotalInvites++
	}
	return nil
}

func (r *inMemoryAccountRepo) CreditWallet(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.Wallet.Balance += amount
		a.Wallet.TotalEarned += amount
	}
	return nil
}

func (r *inMemoryAccountRepo) HoldBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (bool, error) {
	r.mu.Lock()
	a, ok := r.accounts[id]
	if !ok || a.Wallet.Balance < amount {
		r.mu.Unlock()
		return false, nil
	}
	a.Wallet.Balance -= amount
	r.mu.Unlock()

	// A real store undoes the decrement when the enclosing transaction
	// rolls back; the harness compensates explicitly.
	if mt, ok := tx.(*memTx); ok {
		mt.onRollback(func() {
			r.mu.Lock()
			if a, ok := r.accounts[id]; ok {
				a.Wallet.Balance += amount
			}
			r.mu.Unlock()
		})
	}
	return true, nil
}

func (r *inMemoryAccountRepo) ReleaseBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.Wallet.Balance += amount
	}
	return nil
}

func (r *inMemoryAccountRepo) AddTotalWithdrawn(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.Wallet.TotalWithdrawn += amount
	}
	return nil
}

func (r *inMemoryAccountRepo) UpdatePaymentInfo(ctx context.Context, id uuid.UUID, info domain.PaymentInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.PaymentInfo = &info
	}
	return nil
}

func (r *inMemoryAccountRepo) UpdateSubscription(ctx context.Context, id uuid.UUID, sub domain.SubscriptionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.Subscription = sub
	}
	return nil
}

func (r *inMemoryAccountRepo) SetProviderCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.ProviderCustomerID = &customerID
	}
	return nil
}

// setRole is a test hook for promoting an account to admin.
func (r *inMemoryAccountRepo) setRole(id uuid.UUID, role domain.AccountRole) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.Role = role
	}
}

// --- In-Memory Redemption Repo ---

type inMemoryRedemptionRepo struct {
	mu          sync.RWMutex
	redemptions []*domain.InvitationRedemption
	accounts    *inMemoryAccountRepo
}

func newInMemoryRedemptionRepo(accounts *inMemoryAccountRepo) *inMemoryRedemptionRepo {
	return &inMemoryRedemptionRepo{accounts: accounts}
}

func (r *inMemoryRedemptionRepo) Create(ctx context.Context, tx pgx.Tx, redemption *domain.InvitationRedemption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.redemptions {
		if existing.InviteCode == redemption.InviteCode && existing.RedeemedBy == redemption.RedeemedBy {
			return ports.ErrDuplicate
		}
	}
	cp := *redemption
	r.redemptions = append(r.redemptions, &cp)
	return nil
}

func (r *inMemoryRedemptionRepo) Exists(ctx context.Context, code string, redeemedBy uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, existing := range r.redemptions {
		if existing.InviteCode == code && existing.RedeemedBy == redeemedBy {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryRedemptionRepo) ListByInviter(ctx context.Context, inviterID uuid.UUID, limit int) ([]ports.RedemptionDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ports.RedemptionDetail
	for i := len(r.redemptions) - 1; i >= 0 && len(out) < limit; i-- {
		red := r.redemptions[i]
		if red.InviterID != inviterID {
			continue
		}
		detail := ports.RedemptionDetail{InvitationRedemption: *red}
		if a, _ := r.accounts.GetByID(ctx, red.RedeemedBy); a != nil {
			detail.RedeemerName = a.DisplayName
		}
		out = append(out, detail)
	}
	return out, nil
}

// --- In-Memory Commission Repo ---

type inMemoryCommissionRepo struct {
	mu          sync.RWMutex
	commissions []*domain.Commission
	accounts    *inMemoryAccountRepo
}

func newInMemoryCommissionRepo(accounts *inMemoryAccountRepo) *inMemoryCommissionRepo {
	return &inMemoryCommissionRepo{accounts: accounts}
}

func (r *inMemoryCommissionRepo) Create(ctx context.Context, tx pgx.Tx, commission *domain.Commission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.commissions {
		if existing.SubscriptionID == commission.SubscriptionID && existing.ReferredUserID == commission.ReferredUserID {
			return ports.ErrDuplicate
		}
	}
	cp := *commission
	r.commissions = append(r.commissions, &cp)
	return nil
}

func (r *inMemoryCommissionRepo) GetBySubscription(ctx context.Context, subscriptionID string, referredUserID uuid.UUID) (*domain.Commission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.commissions {
		if c.SubscriptionID == subscriptionID && c.ReferredUserID == referredUserID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryCommissionRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.commissions {
		if c.ID == id {
			c.Status = domain.CommissionStatusPaid
			at := paidAt
			c.PaidAt = &at
			return nil
		}
	}
	return nil
}

func (r *inMemoryCommissionRepo) detail(ctx context.Context, c *domain.Commission) ports.CommissionDetail {
	d := ports.CommissionDetail{Commission: *c}
	if a, _ := r.accounts.GetByID(ctx, c.ReferredUserID); a != nil {
		d.ReferredUserName = a.DisplayName
	}
	return d
}

func (r *inMemoryCommissionRepo) ListByReferrer(ctx context.Context, params ports.CommissionListParams) ([]ports.CommissionDetail, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*domain.Commission
	for i := len(r.commissions) - 1; i >= 0; i-- {
		c := r.commissions[i]
		if c.ReferrerID != params.ReferrerID {
			continue
		}
		if params.Status != nil && c.Status != *params.Status {
			continue
		}
		matched = append(matched, c)
	}
	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]ports.CommissionDetail, 0, end-start)
	for _, c := range matched[start:end] {
		out = append(out, r.detail(ctx, c))
	}
	return out, total, nil
}

func (r *inMemoryCommissionRepo) ListRecentPaid(ctx context.Context, referrerID uuid.UUID, limit int) ([]ports.CommissionDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ports.CommissionDetail
	for i := len(r.commissions) - 1; i >= 0 && len(out) < limit; i-- {
		c := r.commissions[i]
		if c.ReferrerID == referrerID && c.Status == domain.CommissionStatusPaid {
			out = append(out, r.detail(ctx, c))
		}
	}
	return out, nil
}

func (r *inMemoryCommissionRepo) SumPaidByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, c := range r.commissions {
		if c.ReferrerID == referrerID && c.Status == domain.CommissionStatusPaid {
			sum += c.CommissionAmount
		}
	}
	return sum, nil
}

func (r *inMemoryCommissionRepo) GetStats(ctx context.Context) ([]ports.CommissionStatusStat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byStatus := make(map[domain.CommissionStatus]*ports.CommissionStatusStat)
	for _, c := range r.commissions {
		stat, ok := byStatus[c.Status]
		if !ok {
			stat = &ports.CommissionStatusStat{Status: c.Status}
			byStatus[c.Status] = stat
		}
		stat.Count++
		stat.TotalAmount += c.CommissionAmount
	}
	out := make([]ports.CommissionStatusStat, 0, len(byStatus))
	for _, stat := range byStatus {
		out = append(out, *stat)
	}
	return out, nil
}

func (r *inMemoryCommissionRepo) TopReferrers(ctx context.Context, limit int) ([]ports.ReferrerStat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	earned := make(map[uuid.UUID]*ports.ReferrerStat)
	for _, c := range r.commissions {
		if c.Status != domain.CommissionStatusPaid {
			continue
		}
		stat, ok := earned[c.ReferrerID]
		if !ok {
			stat = &ports.ReferrerStat{UserID: c.ReferrerID}
			if a, _ := r.accounts.GetByID(ctx, c.ReferrerID); a != nil {
				stat.DisplayName = a.DisplayName
				stat.Email = a.Email
				stat.ReferralCount = a.TotalInvites
			}
			earned[c.ReferrerID] = stat
		}
		stat.TotalEarned += c.CommissionAmount
	}
	out := make([]ports.ReferrerStat, 0, len(earned))
	for _, stat := range earned {
		out = append(out, *stat)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- In-Memory Withdrawal Repo ---

type inMemoryWithdrawalRepo struct {
	mu       sync.RWMutex
	requests []*domain.WithdrawalRequest
	accounts *inMemoryAccountRepo
}

func newInMemoryWithdrawalRepo(accounts *inMemoryAccountRepo) *inMemoryWithdrawalRepo {
	return &inMemoryWithdrawalRepo{accounts: accounts}
}

func (r *inMemoryWithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, request *domain.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.requests {
		if existing.UserID == request.UserID && existing.IsOpen() {
			return ports.ErrDuplicate
		}
	}
	cp := *request
	r.requests = append(r.requests, &cp)
	return nil
}

func (r *inMemoryWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.requests {
		if w.ID == id {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWithdrawalRepo) GetOpenByUser(ctx context.Context, userID uuid.UUID) (*domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.requests {
		if w.UserID == userID && w.IsOpen() {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWithdrawalRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, adminID uuid.UUID, transactionID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.requests {
		if w.ID == id && w.Status == domain.WithdrawalStatusPending {
			w.Status = domain.WithdrawalStatusCompleted
			processedAt, trID, admin := at, transactionID, adminID
			w.ProcessedAt = &processedAt
			w.ProcessedBy = &admin
			w.TransactionID = &trID
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryWithdrawalRepo) MarkRejected(ctx context.Context, tx pgx.Tx, id uuid.UUID, adminID uuid.UUID, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.requests {
		if w.ID == id && w.Status == domain.WithdrawalStatusPending {
			w.Status = domain.WithdrawalStatusRejected
			processedAt, why, admin := at, reason, adminID
			w.ProcessedAt = &processedAt
			w.ProcessedBy = &admin
			w.RejectionReason = &why
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryWithdrawalRepo) MarkCancelled(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.requests {
		if w.ID == id && w.Status == domain.WithdrawalStatusPending {
			w.Status = domain.WithdrawalStatusCancelled
			processedAt := at
			w.ProcessedAt = &processedAt
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryWithdrawalRepo) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WithdrawalRequest, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*domain.WithdrawalRequest
	for i := len(r.requests) - 1; i >= 0; i-- {
		if r.requests[i].UserID == userID {
			matched = append(matched, r.requests[i])
		}
	}
	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]domain.WithdrawalRequest, 0, end-start)
	for _, w := range matched[start:end] {
		out = append(out, *w)
	}
	return out, total, nil
}

func (r *inMemoryWithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]ports.WithdrawalDetail, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*domain.WithdrawalRequest
	for i := len(r.requests) - 1; i >= 0; i-- {
		w := r.requests[i]
		if params.Status != nil && w.Status != *params.Status {
			continue
		}
		matched = append(matched, w)
	}
	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]ports.WithdrawalDetail, 0, end-start)
	for _, w := range matched[start:end] {
		detail := ports.WithdrawalDetail{WithdrawalRequest: *w}
		if a, _ := r.accounts.GetByID(ctx, w.UserID); a != nil {
			detail.UserName = a.DisplayName
			detail.UserEmail = a.Email
		}
		out = append(out, detail)
	}
	return out, total, nil
}

// --- In-Memory Event Repo ---

type inMemoryEventRepo struct {
	mu     sync.RWMutex
	events map[string]domain.ProcessedEvent
}

func newInMemoryEventRepo() *inMemoryEventRepo {
	return &inMemoryEventRepo{events: make(map[string]domain.ProcessedEvent)}
}

func (r *inMemoryEventRepo) WasProcessed(ctx context.Context, eventID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.events[eventID]
	return ok, nil
}

func (r *inMemoryEventRepo) MarkProcessed(ctx context.Context, eventID string, eventType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[eventID]; ok {
		return nil
	}
	r.events[eventID] = domain.ProcessedEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now().UTC(),
	}
	return nil
}

// --- In-Memory Transactor ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{}, nil
}

// memTx is a pgx.Tx stand-in that replays registered compensations on
// rollback. Commit discards them; rollback after commit is a no-op, which
// matches the deferred-rollback pattern the services use.
type memTx struct {
	noopTx
	mu            sync.Mutex
	compensations []func()
	done          bool
}

func (t *memTx) onRollback(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.compensations = append(t.compensations, fn)
}

func (t *memTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.compensations = nil
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	for i := len(t.compensations) - 1; i >= 0; i-- {
		t.compensations[i]()
	}
	t.compensations = nil
	return nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
