package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"forexhub/internal/plan"
	"forexhub/internal/subscription"
)

type State string

const (
	StateInitiated State = "INITIATED"
	StateConfirmed State = "CONFIRMED"
	StateFailed    State = "FAILED"
	StateTimeout   State = "TIMEOUT"
)

// PendingPayment tracks an STK push between initiation and its callback.
// RequestID is the gateway's CheckoutRequestID.
type PendingPayment struct {
	RequestID         string          `json:"request_id" db:"request_id"`
	MerchantRequestID string          `json:"merchant_request_id" db:"merchant_request_id"`
	SubjectID         int64           `json:"subject_id" db:"subject_id"`
	PlanKind          plan.Kind       `json:"plan_kind" db:"plan_kind"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	PhoneNumber       string          `json:"phone_number" db:"phone_number"`
	AccountReference  string          `json:"account_reference" db:"account_reference"`
	State             State           `json:"state" db:"state"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeUnknown   Outcome = "unknown"
	OutcomeMalformed Outcome = "malformed"
)

// Result describes what a callback, timeout or sweep did.
type Result struct {
	Outcome           Outcome
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Payment           *PendingPayment
	Subscription      *subscription.Subscription
}

type ChargeRequest struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

type ChargeResponse struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResponseCode      string
	CustomerMessage   string
}

// Gateway asks the customer's phone to approve a charge.
type Gateway interface {
	RequestCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
}

// PendingStore holds payments awaiting resolution. Implementations must make
// CompareAndSwapState atomic: of concurrent callers moving the same record
// out of a state, exactly one gets true. Moves CanTransition rejects fail
// with ErrInvalidTransition. A CONFIRMED record must be kept until removed.
type PendingStore interface {
	// Put fails with ErrDuplicatePending if the id is already stored.
	Put(ctx context.Context, p *PendingPayment) error
	// Get returns nil, nil for unknown ids.
	Get(ctx context.Context, requestID string) (*PendingPayment, error)
	CompareAndSwapState(ctx context.Context, requestID string, from, to State) (bool, error)
	Remove(ctx context.Context, requestID string) error
	List(ctx context.Context) ([]*PendingPayment, error)
}

// GrantFunc builds the ledger row for a payment being confirmed.
type GrantFunc func(p *PendingPayment) (*subscription.Subscription, error)

// Settler is implemented by stores that share a database with the ledger.
// Settle moves the record from `from` (INITIATED, or CONFIRMED for a
// leftover) to CONFIRMED, inserts the row built by grant and deletes the
// record in one transaction. Nothing changes when it fails. A record not in
// `from` yields ErrUnknownPayment; a taken payment reference yields
// subscription.ErrDuplicateReference together with the record.
type Settler interface {
	Settle(ctx context.Context, requestID string, from State, grant GrantFunc) (*PendingPayment, *subscription.Subscription, error)
}
