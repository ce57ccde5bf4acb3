package ledger

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rules are the tunable constants of the ledger.
type Rules struct {
	RewardAmount         decimal.Decimal
	RewardCooldown       time.Duration
	MinWithdrawal        decimal.Decimal
	WithdrawalFeePercent decimal.Decimal
	ReferralAdsNeeded    int
	ReferralTasksNeeded  int
	ReferralBonus        decimal.Decimal
	ReferralPrefix       string
}

func DefaultRules() Rules {
	return Rules{
		RewardAmount:         decimal.RequireFromString("0.10"),
		RewardCooldown:       10 * time.Second,
		MinWithdrawal:        decimal.NewFromInt(10),
		WithdrawalFeePercent: decimal.NewFromInt(10),
		ReferralAdsNeeded:    3,
		ReferralTasksNeeded:  2,
		ReferralBonus:        decimal.RequireFromString("2.50"),
		ReferralPrefix:       "REF-",
	}
}

type Engine struct {
	rules Rules
	now   func() time.Time
	newID func(time.Time) string
}

type Option func(*Engine)

// WithClock replaces the wall clock used for timestamps and the cooldown.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the transaction id generator.
func WithIDGenerator(fn func(time.Time) string) Option {
	return func(e *Engine) { e.newID = fn }
}

func NewEngine(rules Rules, opts ...Option) *Engine {
	if rules.ReferralPrefix == "" {
		rules.ReferralPrefix = "REF-"
	}
	e := &Engine{
		rules: rules,
		now:   time.Now,
		newID: NewTransactionID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Rules() Rules { return e.rules }

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewTransactionID returns TXN-<unix millis>-<6 base36 chars>.
func NewTransactionID(t time.Time) string {
	var suffix [6]byte
	for i := range suffix {
		suffix[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return fmt.Sprintf("TXN-%d-%s", t.UnixMilli(), suffix[:])
}

func (e *Engine) entry(now time.Time, kind Kind, amount *decimal.Decimal, note string) Transaction {
	return Transaction{
		ID:        e.newID(now),
		Timestamp: now.UTC(),
		Kind:      kind,
		Amount:    amount,
		Note:      note,
	}
}

// Open builds a new account with a single signup entry. A referral code given
// at signup is kept only when it carries the referral prefix.
func (e *Engine) Open(id, name, referralCode string) Account {
	now := e.now()
	code := strings.ToUpper(strings.TrimSpace(referralCode))
	note := "Account created"
	if code != "" && e.validCode(code) {
		note = fmt.Sprintf("Account created with referral %s", code)
	} else {
		code = ""
	}
	return Account{
		ID:           id,
		Name:         name,
		Balance:      decimal.Zero,
		UsedReferral: code,
		History:      []Transaction{e.entry(now, KindSignup, nil, note)},
	}
}

// Reset wipes balance, history and referral state. Identity and the store
// version are kept.
func (e *Engine) Reset(acct Account) Result {
	now := e.now()
	signup := e.entry(now, KindSignup, nil, "Account data reset.")
	next := Account{
		ID:      acct.ID,
		Name:    acct.Name,
		Balance: decimal.Zero,
		History: []Transaction{signup},
		Version: acct.Version,
	}
	return Result{Account: next, Appended: []Transaction{signup}}
}

// ReferralCodeFor derives the shareable code of an account.
func (e *Engine) ReferralCodeFor(accountID string) string {
	tail := accountID
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return e.rules.ReferralPrefix + strings.ToUpper(tail)
}

func (e *Engine) validCode(upper string) bool {
	prefix := strings.ToUpper(e.rules.ReferralPrefix)
	return strings.HasPrefix(upper, prefix) && len(upper) > len(prefix)
}

func money(d decimal.Decimal) *decimal.Decimal {
	return &d
}
