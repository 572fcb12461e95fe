package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"forexhub/internal/subscription"
	"forexhub/internal/tutorial"
)

type TutorialRepository interface {
	GetByID(ctx context.Context, id int64) (*tutorial.Tutorial, error)
	List(ctx context.Context) ([]*tutorial.Tutorial, error)
}

// SubscriptionLookup is the read side of the subscription ledger.
type SubscriptionLookup interface {
	GetActive(ctx context.Context, userID int64) (*subscription.Subscription, error)
}

type Service struct {
	repo TutorialRepository
	subs SubscriptionLookup
	now  func() time.Time
}

func NewService(repo TutorialRepository, subs SubscriptionLookup) *Service {
	return &Service{repo: repo, subs: subs, now: time.Now}
}

// CanAccess reports whether userID may watch t. Free tutorials are open to
// everyone, anonymous callers included; everything else needs a
// subscription whose end date is still ahead. Individual purchases do not
// grant access.
func (s *Service) CanAccess(ctx context.Context, userID int64, t *tutorial.Tutorial) (bool, error) {
	if t.FreeAccess {
		return true, nil
	}
	if userID <= 0 {
		return false, nil
	}
	sub, err := s.subs.GetActive(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "check subscription")
	}
	return sub != nil && sub.IsActiveAt(s.now()), nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]tutorial.Listing, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list tutorials")
	}

	subscribed := false
	if userID > 0 {
		sub, err := s.subs.GetActive(ctx, userID)
		if err != nil {
			return nil, errors.Wrap(err, "check subscription")
		}
		subscribed = sub != nil && sub.IsActiveAt(s.now())
	}

	out := make([]tutorial.Listing, 0, len(all))
	for _, t := range all {
		l := tutorial.Listing{Tutorial: *t, Locked: !t.FreeAccess && !subscribed}
		l.Price = t.EffectivePrice()
		if l.Locked {
			l.VideoURL = ""
		}
		out = append(out, l)
	}
	return out, nil
}

// Get returns ErrForbidden when the viewer is not entitled to t. Like List
// it reports the effective price.
func (s *Service) Get(ctx context.Context, userID, id int64) (*tutorial.Tutorial, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "load tutorial")
	}
	if t == nil {
		return nil, tutorial.ErrNotFound
	}

	ok, err := s.CanAccess(ctx, userID, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, tutorial.ErrForbidden
	}
	t.Price = t.EffectivePrice()
	return t, nil
}
