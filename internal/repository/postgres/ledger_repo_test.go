package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/and161185/carbon-tracker/internal/errs"
	"github.com/and161185/carbon-tracker/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var (
	fpCols  = []string{"id", "username", "total_emissions", "streak", "last_activity_date"}
	actCols = []string{"id", "user_id", "category", "activity_type", "amount", "unit", "emissions", "occurred_at", "created_at"}
)

func q(s string) string { return regexp.QuoteMeta(s) }

func sampleActivity(userID uuid.UUID) model.Activity {
	at := time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)
	return model.Activity{
		ID:           uuid.Must(uuid.NewV4()),
		UserID:       userID,
		Category:     model.CategoryTransport,
		ActivityType: "car-petrol",
		Amount:       100,
		Unit:         "km",
		Emissions:    21,
		OccurredAt:   at,
		CreatedAt:    at,
	}
}

func TestLedgerRepo_Append_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)

	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())
	a := sampleActivity(userID)
	last := time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC)
	today := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT id, username, total_emissions, streak, last_activity_date FROM users WHERE id=$1 FOR UPDATE`)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(fpCols).AddRow(userID, "alice", 10.5, 2, &last))
	mock.ExpectExec(q(`INSERT INTO activities (id, user_id, category, activity_type, amount, unit, emissions, occurred_at, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`)).
		WithArgs(a.ID, userID, model.CategoryTransport, "car-petrol", 100.0, "km", 21.0, a.OccurredAt, a.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(q(`UPDATE users SET total_emissions=$2, streak=$3, last_activity_date=$4 WHERE id=$1`)).
		WithArgs(userID, 31.5, 3, &today).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	fp, err := r.Append(ctx, a, func(fp *model.Footprint) error {
		require.Equal(t, 10.5, fp.TotalEmissions)
		fp.TotalEmissions += a.Emissions
		fp.Streak++
		fp.LastActivityDate = &today
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 31.5, fp.TotalEmissions)
	require.Equal(t, 3, fp.Streak)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Append_UnknownUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)

	userID := uuid.Must(uuid.NewV4())
	mock.ExpectBegin()
	mock.ExpectQuery(q(`FROM users WHERE id=$1 FOR UPDATE`)).
		WithArgs(userID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	called := false
	_, err := r.Append(context.Background(), sampleActivity(userID), func(*model.Footprint) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Append_UpdateErrorRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)

	userID := uuid.Must(uuid.NewV4())
	mock.ExpectBegin()
	mock.ExpectQuery(q(`FROM users WHERE id=$1 FOR UPDATE`)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(fpCols).AddRow(userID, "alice", 0.0, 0, (*time.Time)(nil)))
	mock.ExpectRollback()

	boom := errors.New("boom")
	_, err := r.Append(context.Background(), sampleActivity(userID), func(*model.Footprint) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Append_InsertErrorRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)

	userID := uuid.Must(uuid.NewV4())
	a := sampleActivity(userID)
	mock.ExpectBegin()
	mock.ExpectQuery(q(`FROM users WHERE id=$1 FOR UPDATE`)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(fpCols).AddRow(userID, "alice", 0.0, 0, (*time.Time)(nil)))
	mock.ExpectExec(q(`INSERT INTO activities`)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := r.Append(context.Background(), a, func(*model.Footprint) error { return nil })
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Remove_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)

	userID := uuid.Must(uuid.NewV4())
	a := sampleActivity(userID)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`DELETE FROM activities WHERE id=$1 AND user_id=$2 RETURNING`)).
		WithArgs(a.ID, userID).
		WillReturnRows(pgxmock.NewRows(actCols).AddRow(a.ID, userID, a.Category, a.ActivityType, a.Amount, a.Unit,
			a.Emissions, a.OccurredAt, a.CreatedAt))
	mock.ExpectQuery(q(`UPDATE users SET total_emissions = GREATEST(0, total_emissions - $2) WHERE id=$1 RETURNING`)).
		WithArgs(userID, 21.0).
		WillReturnRows(pgxmock.NewRows(fpCols).AddRow(userID, "alice", 0.0, 1, (*time.Time)(nil)))
	mock.ExpectCommit()

	got, fp, err := r.Remove(context.Background(), userID, a.ID)
	require.NoError(t, err)
	require.Equal(t, a, got)
	require.Equal(t, 0.0, fp.TotalEmissions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Remove_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)

	userID := uuid.Must(uuid.NewV4())
	id := uuid.Must(uuid.NewV4())
	mock.ExpectBegin()
	mock.ExpectQuery(q(`DELETE FROM activities WHERE id=$1 AND user_id=$2`)).
		WithArgs(id, userID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := r.Remove(context.Background(), userID, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildFind(t *testing.T) {
	t.Parallel()

	userID := uuid.Must(uuid.NewV4())
	sql, args := buildFind(model.ActivityQuery{UserID: userID})
	require.Equal(t, `SELECT id, user_id, category, activity_type, amount, unit, emissions, occurred_at, created_at FROM activities WHERE user_id=$1 ORDER BY occurred_at DESC, id DESC`, sql)
	require.Equal(t, []any{userID}, args)

	from := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	cat := model.CategoryFood
	sql, args = buildFind(model.ActivityQuery{UserID: userID, From: from, To: &to, Category: &cat, Limit: 100})
	require.Contains(t, sql, `AND occurred_at >= $2 AND occurred_at < $3 AND category = $4 ORDER BY occurred_at DESC, id DESC LIMIT $5`)
	require.Equal(t, []any{userID, from, to, cat, 100}, args)
}

func TestLedgerRepo_Find(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)

	userID := uuid.Must(uuid.NewV4())
	a := sampleActivity(userID)
	from := a.OccurredAt.Add(-time.Hour)

	mock.ExpectQuery(q(`FROM activities WHERE user_id=$1 AND occurred_at >= $2 ORDER BY occurred_at DESC, id DESC LIMIT $3`)).
		WithArgs(userID, from, 10).
		WillReturnRows(pgxmock.NewRows(actCols).AddRow(a.ID, userID, a.Category, a.ActivityType, a.Amount, a.Unit,
			a.Emissions, a.OccurredAt, a.CreatedAt))

	got, err := r.Find(context.Background(), model.ActivityQuery{UserID: userID, From: from, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []model.Activity{a}, got)

	mock.ExpectQuery(q(`FROM activities WHERE user_id=$1`)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(actCols))
	got, err = r.Find(context.Background(), model.ActivityQuery{UserID: userID})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Reconcile(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewLedgerRepo(db)

	userID := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(q(`SET total_emissions = COALESCE((SELECT SUM(emissions) FROM activities WHERE user_id=$1), 0)`)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(fpCols).AddRow(userID, "alice", 42.0, 3, (*time.Time)(nil)))
	fp, err := r.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, 42.0, fp.TotalEmissions)

	mock.ExpectQuery(q(`SET total_emissions = COALESCE`)).
		WithArgs(userID).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Reconcile(context.Background(), userID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
