package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forexhub/internal/plan"
	"forexhub/internal/subscription"
)

func newMock(t *testing.T) (*SubscriptionRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewSubscriptionRepository(sqlx.NewDb(mockDB, "postgres")), mock
}

func newSub(now time.Time) *subscription.Subscription {
	return &subscription.Subscription{
		UserID:           5,
		PlanKind:         plan.Monthly,
		StartDate:        now,
		EndDate:          now.AddDate(0, 0, 30),
		PaymentReference: "ws_CO_1",
		AccountReference: "M15000000001",
		AmountPaid:       decimal.NewFromInt(1000),
	}
}

func TestCreateFromPayment(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WithArgs(int64(5), "monthly", sqlmock.AnyArg(), sqlmock.AnyArg(), true, "ws_CO_1", "M15000000001", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, now))

	sub := newSub(now)
	require.NoError(t, repo.CreateFromPayment(context.Background(), sub))
	assert.Equal(t, int64(11), sub.ID)
	assert.True(t, sub.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFromPaymentDuplicateReference(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateFromPayment(context.Background(), newSub(time.Now()))
	assert.ErrorIs(t, err, subscription.ErrDuplicateReference)
}

func TestGetActiveByUserIDNone(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions")).
		WithArgs(int64(5), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	sub, err := repo.GetActiveByUserID(context.Background(), 5, now)
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestGetByPaymentReference(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "user_id", "plan_kind", "start_date", "end_date", "is_active", "payment_reference", "account_reference", "amount_paid", "created_at"}).
		AddRow(3, 5, "yearly", now, now.AddDate(0, 0, 365), true, "ws_CO_9", "Y15J0000000A", "4999.00", now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE payment_reference = $1")).
		WithArgs("ws_CO_9").
		WillReturnRows(rows)

	sub, err := repo.GetByPaymentReference(context.Background(), "ws_CO_9")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, plan.Yearly, sub.PlanKind)
	assert.True(t, decimal.RequireFromString("4999").Equal(sub.AmountPaid))
	assert.Equal(t, "Y15J0000000A", sub.AccountReference)
}

func TestTxSubscriptionRepositoryRollsBackWithCaller(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	sqlxDB := sqlx.NewDb(mockDB, "postgres")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)
	err = NewTxSubscriptionRepository(tx).CreateFromPayment(context.Background(), newSub(time.Now()))
	assert.ErrorIs(t, err, subscription.ErrDuplicateReference)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
