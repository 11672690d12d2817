package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"referral-ledger/config"
	"referral-ledger/internal/core/domain"
	"referral-ledger/internal/core/ports"
	"referral-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const eventDedupTTL = 24 * time.Hour

// WebhookProcessorImpl implements ports.WebhookProcessor.
//
// Dedup is layered: a Redis SET NX fast path in front of the durable
// processed_events table. The handlers themselves are idempotent (the
// commission unique key, conditional subscription updates), so losing
// the Redis layer never double-applies an event.
type WebhookProcessorImpl struct {
	verifier      ports.WebhookVerifier
	dedupCache    ports.EventDedupCache
	eventRepo     ports.EventRepository
	accountRepo   ports.AccountRepository
	commissionSvc ports.CommissionService
	providerCfg   config.ProviderConfig
	referralCfg   config.ReferralConfig
	log           zerolog.Logger
}

// NewWebhookProcessor creates a new WebhookProcessorImpl.
func NewWebhookProcessor(
	verifier ports.WebhookVerifier,
	dedupCache ports.EventDedupCache,
	eventRepo ports.EventRepository,
	accountRepo ports.AccountRepository,
	commissionSvc ports.CommissionService,
	providerCfg config.ProviderConfig,
	referralCfg config.ReferralConfig,
	log zerolog.Logger,
) *WebhookProcessorImpl {
	return &WebhookProcessorImpl{
		verifier:      verifier,
		dedupCache:    dedupCache,
		eventRepo:     eventRepo,
		accountRepo:   accountRepo,
		commissionSvc: commissionSvc,
		providerCfg:   providerCfg,
		referralCfg:   referralCfg,
		log:           log,
	}
}

// Process handles one webhook delivery end to end. A nil return means all
// side effects are durably applied and the delivery may be acknowledged;
// the caller maps apperror codes to 4xx/5xx so the provider knows whether
// to retry.
func (s *WebhookProcessorImpl) Process(ctx context.Context, payload []byte, sigHeader string) error {
	// Signature first, before any parsing of attacker-controlled bytes.
	if err := s.verifier.Verify(payload, sigHeader); err != nil {
		s.log.Warn().Err(err).Msg("webhook signature rejected")
		return apperror.ErrInvalidWebhookSignature()
	}

	var event domain.ProviderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return apperror.ErrWebhookPayload(err)
	}
	if event.ID == "" || event.Type == "" {
		return apperror.ErrWebhookPayload(fmt.Errorf("event id or type missing"))
	}

	if s.providerCfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.providerCfg.ProcessTimeout)
		defer cancel()
	}

	// Layer 1: Redis fast path. A cache failure only costs the shortcut.
	fresh, err := s.dedupCache.MarkSeen(ctx, event.ID, eventDedupTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("event_id", event.ID).Msg("event dedup cache unavailable")
		fresh = true
	}
	if !fresh {
		// Layer 2: only acknowledge if the work actually finished.
		processed, err := s.eventRepo.WasProcessed(ctx, event.ID)
		if err != nil {
			return apperror.ErrWebhookProcessing(err)
		}
		if processed {
			s.log.Debug().Str("event_id", event.ID).Msg("replayed event acknowledged")
			return nil
		}
		// Seen but never finished: an earlier attempt crashed mid-flight.
	}

	if err := s.dispatch(ctx, &event); err != nil {
		s.log.Error().Err(err).
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Msg("webhook processing failed")
		return apperror.ErrWebhookProcessing(err)
	}

	if err := s.eventRepo.MarkProcessed(ctx, event.ID, event.Type); err != nil {
		// The provider will redeliver; handlers absorb the replay.
		return apperror.ErrWebhookProcessing(err)
	}

	s.log.Info().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Msg("webhook event processed")

	return nil
}

func (s *WebhookProcessorImpl) dispatch(ctx context.Context, event *domain.ProviderEvent) error {
	switch event.Type {
	case domain.EventInvoicePaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, event)
	case domain.EventInvoicePaymentFailed:
		return s.handlePaymentFailed(ctx, event)
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated:
		return s.handleSubscriptionChanged(ctx, event)
	case domain.EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		s.log.Debug().Str("event_type", event.Type).Msg("ignoring unhandled event type")
		return nil
	}
}

// handlePaymentSucceeded credits the payer's referrer for this billing
// cycle through the commission ledger.
func (s *WebhookProcessorImpl) handlePaymentSucceeded(ctx context.Context, event *domain.ProviderEvent) error {
	var invoice domain.InvoiceObject
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return fmt.Errorf("unmarshal invoice: %w", err)
	}
	if invoice.Subscription == "" {
		s.log.Debug().Str("invoice_id", invoice.ID).Msg("invoice without subscription, skipping")
		return nil
	}

	account, err := s.accountRepo.GetByCustomerID(ctx, invoice.Customer)
	if err != nil {
		return fmt.Errorf("resolve customer: %w", err)
	}
	if account == nil {
		// Customers created before the ledger existed have no account link.
		s.log.Warn().Str("customer", invoice.Customer).Msg("payment for unknown customer")
		return nil
	}

	_, err = s.commissionSvc.RecordCommission(ctx, ports.CommissionInput{
		ReferredUserID: account.ID,
		SubscriptionID: invoice.Subscription,
		PlanID:         account.Subscription.PlanID,
		Amount:         invoice.AmountPaid,
		Currency:       s.referralCfg.Currency,
		EventRef:       invoice.ID,
	})
	return err
}

// handlePaymentFailed flags the payer's subscription as past due. It never
// touches the wallet: failed cycles simply earn nothing.
func (s *WebhookProcessorImpl) handlePaymentFailed(ctx context.Context, event *domain.ProviderEvent) error {
	var invoice domain.InvoiceObject
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return fmt.Errorf("unmarshal invoice: %w", err)
	}

	account, err := s.accountRepo.GetByCustomerID(ctx, invoice.Customer)
	if err != nil {
		return fmt.Errorf("resolve customer: %w", err)
	}
	if account == nil {
		return nil
	}

	sub := account.Subscription
	sub.Status = domain.SubscriptionStatusPastDue
	return s.accountRepo.UpdateSubscription(ctx, account.ID, sub)
}

// handleSubscriptionChanged refreshes the account's subscription snapshot.
func (s *WebhookProcessorImpl) handleSubscriptionChanged(ctx context.Context, event *domain.ProviderEvent) error {
	var sub domain.SubscriptionObject
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	account, err := s.accountRepo.GetByCustomerID(ctx, sub.Customer)
	if err != nil {
		return fmt.Errorf("resolve customer: %w", err)
	}
	if account == nil {
		s.log.Warn().Str("customer", sub.Customer).Msg("subscription for unknown customer")
		return nil
	}

	state := domain.SubscriptionState{
		Status:            mapSubscriptionStatus(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if plan, ok := domain.FindPlanByPriceID(sub.PriceID); ok {
		state.PlanID = plan.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		state.CurrentPeriodEnd = &end
	}

	return s.accountRepo.UpdateSubscription(ctx, account.ID, state)
}

// handleSubscriptionDeleted marks the subscription canceled.
func (s *WebhookProcessorImpl) handleSubscriptionDeleted(ctx context.Context, event *domain.ProviderEvent) error {
	var sub domain.SubscriptionObject
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	account, err := s.accountRepo.GetByCustomerID(ctx, sub.Customer)
	if err != nil {
		return fmt.Errorf("resolve customer: %w", err)
	}
	if account == nil {
		return nil
	}

	state := account.Subscription
	state.Status = domain.SubscriptionStatusCanceled
	state.CurrentPeriodEnd = nil
	return s.accountRepo.UpdateSubscription(ctx, account.ID, state)
}

func mapSubscriptionStatus(providerStatus string) domain.SubscriptionStatus {
	switch providerStatus {
	case "active", "trialing":
		return domain.SubscriptionStatusActive
	case "past_due", "unpaid":
		return domain.SubscriptionStatusPastDue
	case "canceled", "incomplete_expired":
		return domain.SubscriptionStatusCanceled
	default:
		return domain.SubscriptionStatusNone
	}
}
