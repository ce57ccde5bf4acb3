// Package ledger holds the wallet state machine: reward grants, referral
// redemption, the withdrawal lifecycle and account reset. It performs no I/O;
// callers read an Account, run one transition and persist the result.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindSignup   Kind = "signup"
	KindBonus    Kind = "bonus"
	KindEarn     Kind = "earn"
	KindWithdraw Kind = "withdraw"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Category decides which referral counter a reward advances.
type Category string

const (
	CategoryAd   Category = "ad"
	CategoryTask Category = "task"
)

func (c Category) Valid() bool {
	return c == CategoryAd || c == CategoryTask
}

// WithdrawalDetails is the structured payout record stored on a withdraw entry.
type WithdrawalDetails struct {
	Method      string          `json:"method"`
	Destination string          `json:"destination"`
	Fee         decimal.Decimal `json:"fee"`
	Payout      decimal.Decimal `json:"payout"`
}

type Transaction struct {
	ID         string             `json:"id"`
	Timestamp  time.Time          `json:"timestamp"`
	Kind       Kind               `json:"kind"`
	Amount     *decimal.Decimal   `json:"amount,omitempty"`
	Note       string             `json:"note"`
	Status     Status             `json:"status,omitempty"`
	Withdrawal *WithdrawalDetails `json:"withdrawal,omitempty"`
}

// Contribution is what the entry adds to the balance: zero for log entries
// and for failed withdrawals, whose debit was refunded.
func (t Transaction) Contribution() decimal.Decimal {
	if t.Amount == nil {
		return decimal.Zero
	}
	if t.Kind == KindWithdraw && t.Status == StatusFailed {
		return decimal.Zero
	}
	return *t.Amount
}

type ReferralProgress struct {
	AdsWatched     int `json:"ads_watched"`
	TasksCompleted int `json:"tasks_completed"`
}

type Account struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Balance              decimal.Decimal  `json:"balance"`
	LastRewardAt         time.Time        `json:"last_reward_at"`
	UsedReferral         string           `json:"used_referral,omitempty"`
	ReferralProgress     ReferralProgress `json:"referral_progress"`
	ReferralBonusClaimed bool             `json:"referral_bonus_claimed"`
	History              []Transaction    `json:"history"`
	Version              int64            `json:"version"`
}

// LedgerBalance recomputes the balance from history.
func (a Account) LedgerBalance() decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range a.History {
		sum = sum.Add(tx.Contribution())
	}
	return sum
}

// ReferralPending is true while a redeemed code has not yet paid its bonus.
func (a Account) ReferralPending() bool {
	return a.UsedReferral != "" && !a.ReferralBonusClaimed
}

// FindTransaction returns the index of the entry with the given id, or -1.
func (a Account) FindTransaction(id string) int {
	for i, tx := range a.History {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

// NewestFirst returns a copy of the history in display order.
func (a Account) NewestFirst() []Transaction {
	out := make([]Transaction, len(a.History))
	for i, tx := range a.History {
		out[len(a.History)-1-i] = tx
	}
	return out
}

func (a Account) clone() Account {
	next := a
	next.History = make([]Transaction, len(a.History), len(a.History)+2)
	copy(next.History, a.History)
	return next
}

// Result is the outcome of a successful transition. Appended holds entries
// added to the history; Updated holds an entry edited in place.
type Result struct {
	Account  Account
	Appended []Transaction
	Updated  *Transaction
}
