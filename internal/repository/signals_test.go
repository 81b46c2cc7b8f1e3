package repository_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recoveryos/internal/models"
	"recoveryos/internal/repository"
)

var signalColumns = []string{
	"id", "user_id", "signal_type", "window", "value",
	"baseline", "deviation", "confidence", "reason_codes", "created_at",
}

func float64Ptr(v float64) *float64 {
	return &v
}

func TestCreateSignal_ReturnsInsertedID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewSignalsRepository(db, zap.NewNop())

	rec := &models.SignalRecord{
		UserID:      "user-1",
		SignalType:  "sleep_low",
		Window:      "3day",
		Value:       4.5,
		Baseline:    float64Ptr(5.5),
		Deviation:   float64Ptr(-1.0),
		Confidence:  0.7,
		ReasonCodes: `["SLEEP_DISRUPTION"]`,
		CreatedAt:   "2025-06-15T12:00:00Z",
	}

	// Setup expected SQL query
	mock.ExpectQuery("INSERT INTO signals").
		WithArgs("user-1", "sleep_low", "3day", 4.5, 5.5, -1.0, 0.7, `["SLEEP_DISRUPTION"]`, "2025-06-15T12:00:00Z").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))

	// Execute test
	id, err := repo.CreateSignal(context.Background(), rec)

	// Verify results
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSignal_NilBaselineStoredAsNull(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewSignalsRepository(db, zap.NewNop())

	// 默认基线没有偏移量，baseline/deviation 为 NULL
	rec := &models.SignalRecord{
		UserID:      "user-1",
		SignalType:  "cravings_high",
		Window:      "14day",
		Value:       72,
		Confidence:  0.85,
		ReasonCodes: `["CRAVING_SPIKE"]`,
		CreatedAt:   "2025-06-15T12:00:00Z",
	}

	mock.ExpectQuery("INSERT INTO signals").
		WithArgs("user-1", "cravings_high", "14day", 72.0, nil, nil, 0.85, `["CRAVING_SPIKE"]`, "2025-06-15T12:00:00Z").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))

	id, err := repo.CreateSignal(context.Background(), rec)

	require.NoError(t, err)
	assert.Equal(t, int64(10), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSignal_Validation(t *testing.T) {
	db, _ := setupMockDB(t)
	repo := repository.NewSignalsRepository(db, zap.NewNop())

	tests := []struct {
		name    string
		rec     *models.SignalRecord
		wantErr string
	}{
		{
			name:    "missing user_id",
			rec:     &models.SignalRecord{SignalType: "sleep_low"},
			wantErr: "user_id is required",
		},
		{
			name:    "missing signal_type",
			rec:     &models.SignalRecord{UserID: "user-1"},
			wantErr: "signal_type is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := repo.CreateSignal(context.Background(), tt.rec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, int64(0), id)
		})
	}
}

func TestGetRecentSignals_ScansNullableColumns(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewSignalsRepository(db, zap.NewNop())

	mock.ExpectQuery("FROM signals").
		WithArgs("user-1", 10).
		WillReturnRows(sqlmock.NewRows(signalColumns).
			AddRow(int64(2), "user-1", "isolation_up", "3day", 75.0, 57.0, 18.0, 0.7, `[]`, "2025-06-15T12:00:00Z").
			AddRow(int64(1), "user-1", "cravings_high", "14day", 72.0, nil, nil, 0.85, `[]`, "2025-06-14T12:00:00Z"))

	records, err := repo.GetRecentSignals(context.Background(), "user-1", 10)

	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NotNil(t, records[0].Baseline)
	assert.Equal(t, 57.0, *records[0].Baseline)
	require.NotNil(t, records[0].Deviation)
	assert.Equal(t, 18.0, *records[0].Deviation)

	assert.Nil(t, records[1].Baseline)
	assert.Nil(t, records[1].Deviation)
	assert.Equal(t, "cravings_high", records[1].SignalType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentSignals_DefaultLimit(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewSignalsRepository(db, zap.NewNop())

	// limit 非正数时退回默认 50
	mock.ExpectQuery("FROM signals").
		WithArgs("user-1", 50).
		WillReturnRows(sqlmock.NewRows(signalColumns))

	records, err := repo.GetRecentSignals(context.Background(), "user-1", 0)

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentSignals_RequiresUserID(t *testing.T) {
	db, _ := setupMockDB(t)
	repo := repository.NewSignalsRepository(db, zap.NewNop())

	records, err := repo.GetRecentSignals(context.Background(), "", 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_id is required")
	assert.Nil(t, records)
}

func TestGetRecentSignals_PropagatesDBError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := repository.NewSignalsRepository(db, zap.NewNop())

	mock.ExpectQuery("FROM signals").
		WillReturnError(sql.ErrConnDone)

	_, err := repo.GetRecentSignals(context.Background(), "user-1", 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query signals")
}
