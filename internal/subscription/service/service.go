package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"forexhub/internal/subscription"
)

type SubscriptionRepository interface {
	CreateFromPayment(ctx context.Context, sub *subscription.Subscription) error
	GetActiveByUserID(ctx context.Context, userID int64, now time.Time) (*subscription.Subscription, error)
	ListByUserID(ctx context.Context, userID int64) ([]*subscription.Subscription, error)
	GetByPaymentReference(ctx context.Context, ref string) (*subscription.Subscription, error)
}

type Service struct {
	repo   SubscriptionRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo SubscriptionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Grant records a paid subscription. ErrDuplicateReference is returned as is
// so the payment flow can recognise an already applied confirmation.
func (s *Service) Grant(ctx context.Context, sub *subscription.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if err := s.repo.CreateFromPayment(ctx, sub); err != nil {
		if errors.Is(err, subscription.ErrDuplicateReference) {
			return err
		}
		return errors.Wrap(err, "record subscription")
	}

	s.logger.Info("subscription granted",
		"user_id", sub.UserID,
		"plan_kind", sub.PlanKind,
		"payment_reference", sub.PaymentReference,
		"end_date", sub.EndDate,
	)
	return nil
}

func (s *Service) IsUserSubscribed(ctx context.Context, userID int64) (bool, error) {
	sub, err := s.GetActive(ctx, userID)
	if err != nil {
		return false, err
	}
	return sub != nil, nil
}

// GetActive returns nil, nil when the user has no running subscription.
func (s *Service) GetActive(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	if userID <= 0 {
		return nil, nil
	}
	sub, err := s.repo.GetActiveByUserID(ctx, userID, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "load active subscription")
	}
	return sub, nil
}

func (s *Service) History(ctx context.Context, userID int64) ([]*subscription.Subscription, error) {
	subs, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list subscriptions")
	}
	return subs, nil
}

// FindByPaymentReference returns nil, nil when no row carries ref.
func (s *Service) FindByPaymentReference(ctx context.Context, ref string) (*subscription.Subscription, error) {
	return s.repo.GetByPaymentReference(ctx, ref)
}
