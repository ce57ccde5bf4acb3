package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"earnx/internal/ledger"
	"earnx/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	// ErrConflict means the stored version moved since the account was read.
	ErrConflict = errors.New("account was modified concurrently")
)

type AccountRepository struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewAccountRepository(db *gorm.DB, log *logrus.Logger) *AccountRepository {
	return &AccountRepository{db: db, log: log.WithField("component", "account_repo")}
}

func (r *AccountRepository) Get(ctx context.Context, id string) (ledger.Account, error) {
	var row models.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	return row.ToLedger()
}

// Create stores a new account at version 1.
func (r *AccountRepository) Create(ctx context.Context, acct ledger.Account) (ledger.Account, error) {
	acct.Version = 1
	row, err := models.AccountFromLedger(acct)
	if err != nil {
		return ledger.Account{}, err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ledger.Account{}, ErrAccountExists
		}
		return ledger.Account{}, fmt.Errorf("create account %s: %w", acct.ID, err)
	}
	return acct, nil
}

// Update overwrites the document only when the stored version still equals
// expectedVersion, and bumps the version.
func (r *AccountRepository) Update(ctx context.Context, acct ledger.Account, expectedVersion int64) (ledger.Account, error) {
	row, err := models.AccountFromLedger(acct)
	if err != nil {
		return ledger.Account{}, err
	}
	next := expectedVersion + 1
	res := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND version = ?", acct.ID, expectedVersion).
		Updates(map[string]interface{}{
			"name":                   row.Name,
			"balance":                row.Balance,
			"last_reward_at":         row.LastRewardAt,
			"used_referral":          row.UsedReferral,
			"ads_watched":            row.AdsWatched,
			"tasks_completed":        row.TasksCompleted,
			"referral_bonus_claimed": row.ReferralBonusClaimed,
			"history":                row.History,
			"version":                next,
			"updated_at":             time.Now().UTC(),
		})
	if res.Error != nil {
		return ledger.Account{}, fmt.Errorf("update account %s: %w", acct.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", acct.ID).Count(&count).Error; err != nil {
			return ledger.Account{}, fmt.Errorf("update account %s: %w", acct.ID, err)
		}
		if count == 0 {
			return ledger.Account{}, ErrAccountNotFound
		}
		return ledger.Account{}, ErrConflict
	}
	acct.Version = next
	return acct, nil
}

// ListAll decodes every account. Rows whose history cannot be decoded are
// skipped and counted rather than failing the whole listing.
func (r *AccountRepository) ListAll(ctx context.Context) ([]ledger.Account, int, error) {
	var rows []models.Account
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]ledger.Account, 0, len(rows))
	skipped := 0
	for i := range rows {
		acct, err := rows[i].ToLedger()
		if err != nil {
			skipped++
			r.log.WithError(err).WithField("account_id", rows[i].ID).Warn("skipping malformed account")
			continue
		}
		out = append(out, acct)
	}
	return out, skipped, nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Account{}).Error
}
