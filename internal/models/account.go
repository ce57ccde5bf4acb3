package models

import (
	"encoding/json"
	"fmt"
	"time"

	"earnx/internal/ledger"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Account is the stored wallet document. History is kept as a JSON array so
// one row write covers a whole transition. The column type follows the
// dialect (JSON on mysql, JSONB on postgres) and must not be TEXT, which
// mysql caps at 64KB.
type Account struct {
	ID                   string          `gorm:"primaryKey;size:36"`
	Name                 string          `gorm:"size:120"`
	Balance              decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	LastRewardAt         *time.Time
	UsedReferral         string `gorm:"size:32"`
	AdsWatched           int    `gorm:"not null;default:0"`
	TasksCompleted       int    `gorm:"not null;default:0"`
	ReferralBonusClaimed bool   `gorm:"not null;default:false"`
	History              datatypes.JSON
	Version              int64 `gorm:"not null;default:0"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (Account) TableName() string {
	return "accounts"
}

// AccountFromLedger encodes a ledger account into its row form.
func AccountFromLedger(a ledger.Account) (*Account, error) {
	history := a.History
	if history == nil {
		history = []ledger.Transaction{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	row := &Account{
		ID:                   a.ID,
		Name:                 a.Name,
		Balance:              a.Balance,
		UsedReferral:         a.UsedReferral,
		AdsWatched:           a.ReferralProgress.AdsWatched,
		TasksCompleted:       a.ReferralProgress.TasksCompleted,
		ReferralBonusClaimed: a.ReferralBonusClaimed,
		History:              datatypes.JSON(raw),
		Version:              a.Version,
	}
	if !a.LastRewardAt.IsZero() {
		t := a.LastRewardAt.UTC()
		row.LastRewardAt = &t
	}
	return row, nil
}

// ToLedger decodes the row. An empty history column decodes to no entries;
// malformed JSON is an error.
func (r *Account) ToLedger() (ledger.Account, error) {
	a := ledger.Account{
		ID:           r.ID,
		Name:         r.Name,
		Balance:      r.Balance,
		UsedReferral: r.UsedReferral,
		ReferralProgress: ledger.ReferralProgress{
			AdsWatched:     r.AdsWatched,
			TasksCompleted: r.TasksCompleted,
		},
		ReferralBonusClaimed: r.ReferralBonusClaimed,
		Version:              r.Version,
	}
	if r.LastRewardAt != nil {
		a.LastRewardAt = r.LastRewardAt.UTC()
	}
	if len(r.History) > 0 {
		if err := json.Unmarshal(r.History, &a.History); err != nil {
			return ledger.Account{}, fmt.Errorf("decode history of account %s: %w", r.ID, err)
		}
	}
	return a, nil
}
