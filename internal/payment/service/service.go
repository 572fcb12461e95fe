package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"forexhub/internal/metrics"
	"forexhub/internal/payment"
	"forexhub/internal/plan"
	"forexhub/internal/subscription"
)

// Ledger records paid subscriptions. Grant must fail with
// subscription.ErrDuplicateReference when the payment reference is taken.
type Ledger interface {
	Grant(ctx context.Context, sub *subscription.Subscription) error
	FindByPaymentReference(ctx context.Context, ref string) (*subscription.Subscription, error)
}

const (
	sourceCallback = "callback"
	sourceTimeout  = "timeout"
	sourceSweep    = "sweep"
)

type Service struct {
	store       payment.PendingStore
	gateway     payment.Gateway
	ledger      Ledger
	countryCode string
	logger      *slog.Logger
	now         func() time.Time
	lastSeq     atomic.Int64
}

func NewService(store payment.PendingStore, gateway payment.Gateway, ledger Ledger, countryCode string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if countryCode == "" {
		countryCode = "254"
	}
	return &Service{
		store:       store,
		gateway:     gateway,
		ledger:      ledger,
		countryCode: countryCode,
		logger:      logger,
		now:         time.Now,
	}
}

// Initiate asks the gateway to charge the subscriber and records the pending
// payment under the gateway's CheckoutRequestID. Nothing is stored when the
// gateway call fails.
func (s *Service) Initiate(ctx context.Context, subjectID int64, planKind string, amount decimal.Decimal, phoneNumber string) (*payment.PendingPayment, error) {
	if subjectID <= 0 {
		return nil, fmt.Errorf("%w: subject is required", payment.ErrInvalidRequest)
	}
	kind, ok := plan.ParseKind(planKind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown plan kind %q", payment.ErrInvalidRequest, planKind)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", payment.ErrInvalidRequest)
	}
	phone, ok := payment.NormalizePhone(phoneNumber, s.countryCode)
	if !ok {
		return nil, fmt.Errorf("%w: invalid phone number", payment.ErrInvalidRequest)
	}

	ref, err := payment.NewAccountReference(kind, subjectID, s.nextSeq())
	if err != nil {
		return nil, err
	}

	p := &payment.PendingPayment{
		SubjectID:        subjectID,
		PlanKind:         kind,
		Amount:           amount,
		PhoneNumber:      phone,
		AccountReference: ref,
		State:            payment.StateInitiated,
		CreatedAt:        s.now(),
	}

	resp, err := s.gateway.RequestCharge(ctx, payment.ChargeRequest{
		PhoneNumber:      phone,
		Amount:           amount,
		AccountReference: p.AccountReference,
		Description:      "Forex " + string(kind) + " subscription",
	})
	if err != nil {
		metrics.PaymentsInitiatedTotal.WithLabelValues(string(kind), "gateway_error").Inc()
		s.logger.Error("stk push failed", "subject_id", subjectID, "plan_kind", kind, "error", err)
		return nil, fmt.Errorf("%w: %w", payment.ErrGatewayUnavailable, err)
	}
	if resp == nil || strings.TrimSpace(resp.CheckoutRequestID) == "" {
		metrics.PaymentsInitiatedTotal.WithLabelValues(string(kind), "gateway_error").Inc()
		return nil, fmt.Errorf("%w: gateway returned no checkout request id", payment.ErrGatewayUnavailable)
	}

	p.RequestID = resp.CheckoutRequestID
	p.MerchantRequestID = resp.MerchantRequestID
	if err := s.store.Put(ctx, p); err != nil {
		metrics.PaymentsInitiatedTotal.WithLabelValues(string(kind), "store_error").Inc()
		return nil, fmt.Errorf("store pending payment: %w", err)
	}

	metrics.PaymentsInitiatedTotal.WithLabelValues(string(kind), "ok").Inc()
	s.logger.Info("payment initiated",
		"request_id", p.RequestID,
		"account_reference", p.AccountReference,
		"subject_id", subjectID,
		"plan_kind", kind,
		"amount", amount.String(),
	)
	return p, nil
}

// Resolve applies a gateway callback. Redelivered or unknown callbacks come
// back as OutcomeUnknown with ErrUnknownPayment and change nothing.
func (s *Service) Resolve(ctx context.Context, raw []byte) (payment.Result, error) {
	var (
		res payment.Result
		err error
	)
	switch cb := payment.ParseCallback(raw).(type) {
	case payment.CallbackMalformed:
		res = payment.Result{Outcome: payment.OutcomeMalformed}
		err = fmt.Errorf("%w: %s", payment.ErrMalformedCallback, cb.Reason)
	case payment.CallbackFailure:
		res, err = s.fail(ctx, cb)
	case payment.CallbackSuccess:
		res, err = s.confirm(ctx, cb.CheckoutRequestID)
	}

	s.record(sourceCallback, res, err)
	return res, err
}

// Expire moves a payment still awaiting its callback to TIMEOUT. Unknown and
// already resolved ids are a no-op.
func (s *Service) Expire(ctx context.Context, requestID string) (payment.Result, error) {
	res, err := s.expire(ctx, requestID)
	s.record(sourceTimeout, res, err)
	return res, err
}

func (s *Service) expire(ctx context.Context, requestID string) (payment.Result, error) {
	res := payment.Result{Outcome: payment.OutcomeUnknown, CheckoutRequestID: requestID}

	p, err := s.store.Get(ctx, requestID)
	if err != nil || p == nil {
		return res, err
	}

	switch p.State {
	case payment.StateInitiated:
		won, err := s.store.CompareAndSwapState(ctx, requestID, payment.StateInitiated, payment.StateTimeout)
		if err != nil || !won {
			return res, err
		}
		p.State = payment.StateTimeout
		s.discard(ctx, requestID)
		res.Outcome = payment.OutcomeTimedOut
		res.Payment = p
		return res, nil
	case payment.StateConfirmed:
		// paid; left for the confirming side to complete
		return res, nil
	default:
		// FAILED or TIMEOUT whose removal was interrupted
		s.discard(ctx, requestID)
		return res, nil
	}
}

func (s *Service) confirm(ctx context.Context, requestID string) (payment.Result, error) {
	unknown := payment.Result{Outcome: payment.OutcomeUnknown, CheckoutRequestID: requestID}

	p, err := s.store.Get(ctx, requestID)
	if err != nil {
		return unknown, err
	}
	if p == nil {
		return unknown, payment.ErrUnknownPayment
	}

	switch p.State {
	case payment.StateInitiated, payment.StateConfirmed:
		return s.complete(ctx, p)
	default:
		s.discard(ctx, requestID)
		return unknown, payment.ErrUnknownPayment
	}
}

// complete turns an INITIATED or CONFIRMED record into a ledger row. Stores
// sharing the ledger's database do it in one transaction; the others
// persist CONFIRMED first so a failed ledger write is retried later.
func (s *Service) complete(ctx context.Context, p *payment.PendingPayment) (payment.Result, error) {
	if settler, ok := s.store.(payment.Settler); ok {
		return s.settle(ctx, settler, p.RequestID, p.State)
	}

	if p.State == payment.StateInitiated {
		won, err := s.store.CompareAndSwapState(ctx, p.RequestID, payment.StateInitiated, payment.StateConfirmed)
		if err != nil {
			return payment.Result{Outcome: payment.OutcomeUnknown, CheckoutRequestID: p.RequestID}, err
		}
		if !won {
			// lost to a concurrent resolver or expiry; only a confirmation
			// still needs finishing
			return s.retryConfirmed(ctx, p.RequestID, func(cur *payment.PendingPayment) (payment.Result, error) {
				return s.apply(ctx, cur)
			})
		}
		p.State = payment.StateConfirmed
	}
	return s.apply(ctx, p)
}

func (s *Service) settle(ctx context.Context, settler payment.Settler, requestID string, from payment.State) (payment.Result, error) {
	unknown := payment.Result{Outcome: payment.OutcomeUnknown, CheckoutRequestID: requestID}

	p, sub, err := settler.Settle(ctx, requestID, from, s.newSubscription)
	switch {
	case err == nil:
		return s.confirmed(p, sub), nil
	case errors.Is(err, payment.ErrUnknownPayment):
		if from != payment.StateInitiated {
			return unknown, err
		}
		return s.retryConfirmed(ctx, requestID, func(cur *payment.PendingPayment) (payment.Result, error) {
			return s.settle(ctx, settler, requestID, payment.StateConfirmed)
		})
	case errors.Is(err, subscription.ErrDuplicateReference):
		return s.alreadyGranted(ctx, p)
	}

	// The transaction rolled back. Record the confirmation on its own so the
	// sweeper can finish it once the ledger is reachable again.
	if from == payment.StateInitiated {
		if _, cerr := s.store.CompareAndSwapState(ctx, requestID, payment.StateInitiated, payment.StateConfirmed); cerr != nil {
			s.logger.Error("confirmed payment could not be recorded",
				"request_id", requestID, "error", cerr, "settle_error", err)
		}
	}
	s.logger.Error("grant subscription failed, payment left confirmed", "request_id", requestID, "error", err)
	unknown.Payment = p
	return unknown, err
}

// retryConfirmed re-reads a record after losing a state race and finishes it
// only if the winner left it CONFIRMED.
func (s *Service) retryConfirmed(ctx context.Context, requestID string, finish func(*payment.PendingPayment) (payment.Result, error)) (payment.Result, error) {
	unknown := payment.Result{Outcome: payment.OutcomeUnknown, CheckoutRequestID: requestID}
	cur, err := s.store.Get(ctx, requestID)
	if err != nil {
		return unknown, err
	}
	if cur == nil || cur.State != payment.StateConfirmed {
		return unknown, payment.ErrUnknownPayment
	}
	return finish(cur)
}

func (s *Service) newSubscription(p *payment.PendingPayment) (*subscription.Subscription, error) {
	now := s.now()
	sub := &subscription.Subscription{
		UserID:           p.SubjectID,
		PlanKind:         p.PlanKind,
		StartDate:        now,
		EndDate:          now.Add(time.Duration(p.PlanKind.DurationDays()) * 24 * time.Hour),
		PaymentReference: p.RequestID,
		AccountReference: p.AccountReference,
		AmountPaid:       p.Amount,
	}
	return sub, sub.Validate()
}

// apply writes the ledger row for a CONFIRMED payment and then drops the
// pending record. If the ledger write fails the record stays CONFIRMED and
// is completed by a later delivery or by the sweeper.
func (s *Service) apply(ctx context.Context, p *payment.PendingPayment) (payment.Result, error) {
	sub, err := s.newSubscription(p)
	if err == nil {
		err = s.ledger.Grant(ctx, sub)
	}
	if err != nil {
		if errors.Is(err, subscription.ErrDuplicateReference) {
			return s.alreadyGranted(ctx, p)
		}
		s.logger.Error("grant subscription failed, payment left confirmed",
			"request_id", p.RequestID, "subject_id", p.SubjectID, "error", err)
		return payment.Result{Outcome: payment.OutcomeUnknown, CheckoutRequestID: p.RequestID, Payment: p}, err
	}

	s.discard(ctx, p.RequestID)
	return s.confirmed(p, sub), nil
}

// alreadyGranted handles a confirmation whose ledger row exists. The record
// is dropped only when the row belongs to the same subscriber; otherwise it
// stays for an operator to inspect.
func (s *Service) alreadyGranted(ctx context.Context, p *payment.PendingPayment) (payment.Result, error) {
	unknown := payment.Result{Outcome: payment.OutcomeUnknown, CheckoutRequestID: p.RequestID}

	existing, err := s.ledger.FindByPaymentReference(ctx, p.RequestID)
	if err != nil {
		return unknown, fmt.Errorf("check recorded subscription: %w", err)
	}
	if existing != nil && existing.UserID != p.SubjectID {
		s.logger.Error("payment reference recorded for another subject",
			"request_id", p.RequestID,
			"subject_id", p.SubjectID,
			"recorded_user_id", existing.UserID,
			"subscription_id", existing.ID,
		)
		unknown.Payment = p
		return unknown, fmt.Errorf("%w: %s", payment.ErrReferenceConflict, p.RequestID)
	}

	s.discard(ctx, p.RequestID)
	return unknown, payment.ErrUnknownPayment
}

func (s *Service) confirmed(p *payment.PendingPayment, sub *subscription.Subscription) payment.Result {
	p.State = payment.StateConfirmed
	s.logger.Info("payment confirmed",
		"request_id", p.RequestID,
		"account_reference", p.AccountReference,
		"subject_id", p.SubjectID,
		"plan_kind", p.PlanKind,
		"subscription_id", sub.ID,
	)
	return payment.Result{
		Outcome:           payment.OutcomeConfirmed,
		CheckoutRequestID: p.RequestID,
		Payment:           p,
		Subscription:      sub,
	}
}

func (s *Service) fail(ctx context.Context, cb payment.CallbackFailure) (payment.Result, error) {
	unknown := payment.Result{Outcome: payment.OutcomeUnknown, CheckoutRequestID: cb.CheckoutRequestID, ResultCode: cb.ResultCode}

	p, err := s.store.Get(ctx, cb.CheckoutRequestID)
	if err != nil {
		return unknown, err
	}
	if p == nil {
		return unknown, payment.ErrUnknownPayment
	}

	switch p.State {
	case payment.StateInitiated:
		won, err := s.store.CompareAndSwapState(ctx, p.RequestID, payment.StateInitiated, payment.StateFailed)
		if err != nil {
			return unknown, err
		}
		if !won {
			return unknown, payment.ErrUnknownPayment
		}
	case payment.StateConfirmed:
		return unknown, payment.ErrUnknownPayment
	default:
		s.discard(ctx, p.RequestID)
		return unknown, payment.ErrUnknownPayment
	}

	p.State = payment.StateFailed
	s.discard(ctx, p.RequestID)
	s.logger.Info("payment failed",
		"request_id", p.RequestID,
		"subject_id", p.SubjectID,
		"result_code", cb.ResultCode,
		"result_desc", cb.ResultDesc,
	)
	return payment.Result{
		Outcome:           payment.OutcomeFailed,
		CheckoutRequestID: p.RequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		Payment:           p,
	}, nil
}

type SweepReport struct {
	Pending   int
	Expired   int
	Completed int
}

// SweepStale expires payments whose callback never came within olderThan
// and completes confirmations interrupted before their ledger write.
func (s *Service) SweepStale(ctx context.Context, olderThan time.Duration) (SweepReport, error) {
	var report SweepReport

	pending, err := s.store.List(ctx)
	if err != nil {
		return report, err
	}
	report.Pending = len(pending)
	metrics.PendingPayments.Set(float64(len(pending)))

	cutoff := s.now().Add(-olderThan)
	for _, p := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		var (
			res payment.Result
			err error
		)
		switch {
		case p.State == payment.StateConfirmed:
			res, err = s.complete(ctx, p)
		case p.State.Terminal():
			s.discard(ctx, p.RequestID)
			continue
		case p.CreatedAt.Before(cutoff):
			res, err = s.expire(ctx, p.RequestID)
		default:
			continue
		}

		s.record(sourceSweep, res, err)
		if err != nil && !errors.Is(err, payment.ErrUnknownPayment) {
			s.logger.Error("sweep pending payment", "request_id", p.RequestID, "error", err)
			continue
		}
		switch res.Outcome {
		case payment.OutcomeTimedOut:
			report.Expired++
		case payment.OutcomeConfirmed:
			report.Completed++
		}
	}
	return report, nil
}

// nextSeq is a strictly increasing millisecond clock, so two initiations by
// one subscriber never share an account reference.
func (s *Service) nextSeq() int64 {
	for {
		last := s.lastSeq.Load()
		next := s.now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if s.lastSeq.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (s *Service) discard(ctx context.Context, requestID string) {
	if err := s.store.Remove(ctx, requestID); err != nil {
		s.logger.Error("remove pending payment", "request_id", requestID, "error", err)
	}
}

func (s *Service) record(source string, res payment.Result, err error) {
	metrics.PaymentResolutionsTotal.WithLabelValues(source, string(res.Outcome)).Inc()
	switch {
	case errors.Is(err, payment.ErrMalformedCallback), errors.Is(err, payment.ErrUnknownPayment):
		s.logger.Warn("payment notification ignored", "source", source, "request_id", res.CheckoutRequestID, "error", err)
	case err != nil:
		s.logger.Error("payment notification failed", "source", source, "request_id", res.CheckoutRequestID, "error", err)
	}
}
