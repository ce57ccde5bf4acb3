package repository

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"earnx/internal/ledger"
	"earnx/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var accountColumns = []string{
	"id", "name", "balance", "last_reward_at", "used_referral", "ads_watched",
	"tasks_completed", "referral_bonus_claimed", "history", "version", "created_at", "updated_at",
}

const goodHistory = `[{"id":"TXN-1","timestamp":"2024-03-01T12:00:00Z","kind":"signup","note":"Account created"},` +
	`{"id":"TXN-2","timestamp":"2024-03-01T12:01:00Z","kind":"earn","amount":"100","note":"Seed"}]`

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestAccountRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, quietLogger())
	now := time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("acct-1", "Asha", "100.00", now, "REF-0001", 2, 1, false, goodHistory, 4, now, now))

	acct, err := repo.Get(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", acct.Name)
	assert.True(t, acct.Balance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, ledger.ReferralProgress{AdsWatched: 2, TasksCompleted: 1}, acct.ReferralProgress)
	assert.Equal(t, int64(4), acct.Version)
	require.Len(t, acct.History, 2)
	assert.Equal(t, ledger.KindEarn, acct.History[1].Kind)
	assert.True(t, acct.LedgerBalance().Equal(acct.Balance))
	assert.True(t, acct.LastRewardAt.Equal(now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, quietLogger())

	mock.ExpectQuery("SELECT \\* FROM `accounts`").WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, quietLogger())

	mock.ExpectExec("INSERT INTO `accounts`").WillReturnResult(sqlmock.NewResult(0, 1))

	acct, err := repo.Create(context.Background(), ledger.Account{ID: "acct-1", Name: "Asha"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), acct.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Update(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		count    int
		wantErr  error
	}{
		{name: "version matches", affected: 1},
		{name: "stale version", affected: 0, count: 1, wantErr: ErrConflict},
		{name: "row deleted", affected: 0, count: 0, wantErr: ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewAccountRepository(db, quietLogger())

			mock.ExpectExec("UPDATE `accounts` SET .* WHERE .*id = \\? AND version = \\?").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.affected == 0 {
				mock.ExpectQuery("SELECT count\\(\\*\\) FROM `accounts` WHERE id = \\?").
					WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(tt.count))
			}

			in := ledger.Account{ID: "acct-1", Balance: decimal.NewFromInt(5), Version: 3}
			out, err := repo.Update(context.Background(), in, 3)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, int64(4), out.Version)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepository_ListAllSkipsMalformed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, quietLogger())
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT \\* FROM `accounts`").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("acct-1", "Asha", "100.00", nil, "", 0, 0, false, goodHistory, 2, now, now).
			AddRow("acct-2", "Broken", "3.00", nil, "", 0, 0, false, "{not json", 1, now, now).
			AddRow("acct-3", "Legacy", "0.00", nil, "", 0, 0, false, "", 1, now, now))

	accounts, skipped, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, accounts, 2)
	assert.Equal(t, "acct-1", accounts[0].ID)
	assert.Equal(t, "acct-3", accounts[1].ID)
	assert.Empty(t, accounts[1].History)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountHistoryColumnType(t *testing.T) {
	db, _ := newMockDB(t)
	stmt := &gorm.Statement{DB: db}
	require.NoError(t, stmt.Parse(&models.Account{}))
	field := stmt.Schema.LookUpField("history")
	require.NotNil(t, field)

	mysqlType := strings.ToUpper(db.Migrator().FullDataTypeOf(field).SQL)
	assert.True(t, strings.HasPrefix(mysqlType, "JSON"), "mysql history column is %q", mysqlType)
	assert.NotContains(t, mysqlType, "TEXT")

	pg := &gorm.DB{Config: &gorm.Config{Dialector: postgres.New(postgres.Config{})}}
	assert.Equal(t, "JSONB", datatypes.JSON{}.GormDBDataType(pg, field))
}

func TestAccountRepository_GetLargeHistory(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, quietLogger())
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	amount := decimal.RequireFromString("0.15")
	history := make([]ledger.Transaction, 0, 1000)
	for i := 0; i < 1000; i++ {
		history = append(history, ledger.Transaction{
			ID:        "TXN-1709294400000-000000",
			Timestamp: now.Add(time.Duration(i) * 11 * time.Second),
			Kind:      ledger.KindEarn,
			Amount:    &amount,
			Note:      "Watched Ad for 0.15 INR",
		})
	}
	raw, err := json.Marshal(history)
	require.NoError(t, err)
	require.Greater(t, len(raw), 65535)

	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("acct-1", "Asha", "150.00", now, "", 0, 0, false, raw, 1000, now, now))

	acct, err := repo.Get(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, acct.History, 1000)
	assert.True(t, acct.LedgerBalance().Equal(acct.Balance))
	require.NoError(t, mock.ExpectationsWereMet())
}
