package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindwell/pkg/platform/sentinel"
)

var connectionRowColumns = []string{
	"id", "patient_id", "doctor_id", "encrypted_code", "code_iv", "code_hash",
	"perm_mood", "perm_journal", "perm_voice", "perm_medications", "perm_export",
	"expires_at", "is_active", "access_count", "last_accessed_at", "revoked_at", "revoke_reason", "created_at",
}

func mockConnectionRow(id, patientID uuid.UUID, doctorID any, expiresAt time.Time, isActive bool) *sqlmock.Rows {
	if d, ok := doctorID.(uuid.UUID); ok {
		doctorID = d.String()
	}
	return sqlmock.NewRows(connectionRowColumns).AddRow(
		id.String(), patientID.String(), doctorID, "ciphertext", "00112233", "hash",
		true, false, false, true, false,
		expiresAt, isActive, 0, nil, nil, nil, time.Now(),
	)
}

func TestBindDoctorReturnsUpdatedRow(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	patientID := uuid.New()
	doctorID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`UPDATE connections`).
		WithArgs(id, doctorID, now).
		WillReturnRows(mockConnectionRow(id, patientID, doctorID, now.Add(time.Hour), true))

	conn, err := NewPostgresConnectionStore(db).BindDoctor(context.Background(), id, doctorID, now)
	require.NoError(t, err)
	require.NotNil(t, conn.DoctorID)
	assert.Equal(t, doctorID, *conn.DoctorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBindDoctorClassifiesGuardFailure(t *testing.T) {
	id := uuid.New()
	patientID := uuid.New()
	otherDoctor := uuid.New()
	now := time.Now()

	tests := []struct {
		name string
		row  *sqlmock.Rows
		want error
	}{
		{"revoked", mockConnectionRow(id, patientID, nil, now.Add(time.Hour), false), sentinel.ErrRevoked},
		{"expired", mockConnectionRow(id, patientID, nil, now.Add(-time.Minute), true), sentinel.ErrExpired},
		{"claimed by another", mockConnectionRow(id, patientID, otherDoctor, now.Add(time.Hour), true), sentinel.ErrAlreadyClaimed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
			require.NoError(t, err)
			defer db.Close()

			doctorID := uuid.New()
			mock.ExpectQuery(`UPDATE connections`).
				WithArgs(id, doctorID, now).
				WillReturnRows(sqlmock.NewRows(connectionRowColumns))
			mock.ExpectQuery(`(?s)SELECT .* FROM connections WHERE id = \$1`).
				WithArgs(id).
				WillReturnRows(tt.row)

			_, err = NewPostgresConnectionStore(db).BindDoctor(context.Background(), id, doctorID, now)
			assert.ErrorIs(t, err, tt.want)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBindDoctorMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	doctorID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`UPDATE connections`).
		WithArgs(id, doctorID, now).
		WillReturnRows(sqlmock.NewRows(connectionRowColumns))
	mock.ExpectQuery(`(?s)SELECT .* FROM connections WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(connectionRowColumns))

	_, err = NewPostgresConnectionStore(db).BindDoctor(context.Background(), id, doctorID, now)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRevokeIdempotentWhenAlreadyRevoked(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	patientID := uuid.New()
	now := time.Now()

	mock.ExpectExec(`UPDATE connections`).
		WithArgs(id, patientID, now, "reason").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(id, patientID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err = NewPostgresConnectionStore(db).Revoke(context.Background(), id, patientID, now, "reason")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeUnknownConnection(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	patientID := uuid.New()
	now := time.Now()

	mock.ExpectExec(`UPDATE connections`).
		WithArgs(id, patientID, now, "").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(id, patientID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err = NewPostgresConnectionStore(db).Revoke(context.Background(), id, patientID, now, "")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
