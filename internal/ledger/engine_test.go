package ledger

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	seq := 0
	e := NewEngine(DefaultRules(),
		WithClock(clock.Now),
		WithIDGenerator(func(time.Time) string {
			seq++
			return fmt.Sprintf("TXN-%04d", seq)
		}),
	)
	return e, clock
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// funded opens an account and credits it through a task reward so the
// history stays consistent with the balance.
func funded(t *testing.T, e *Engine, clock *fakeClock, amount string) Account {
	t.Helper()
	acct := e.Open("user-0001", "Asha", "")
	res, err := e.GrantReward(acct, Reward{Description: "Seed", Amount: dec(amount), Category: CategoryTask})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	return res.Account
}

func TestOpen(t *testing.T) {
	e, _ := newTestEngine(t)

	tests := []struct {
		name     string
		referral string
		wantCode string
		wantNote string
	}{
		{name: "no referral", referral: "", wantCode: "", wantNote: "Account created"},
		{name: "valid referral is upper-cased", referral: " ref-ab12 ", wantCode: "REF-AB12", wantNote: "Account created with referral REF-AB12"},
		{name: "invalid referral is ignored", referral: "FRIEND", wantCode: "", wantNote: "Account created"},
		{name: "bare prefix is ignored", referral: "REF-", wantCode: "", wantNote: "Account created"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := e.Open("uid-1", "Ravi", tt.referral)
			assert.True(t, acct.Balance.IsZero())
			assert.Equal(t, tt.wantCode, acct.UsedReferral)
			require.Len(t, acct.History, 1)
			assert.Equal(t, KindSignup, acct.History[0].Kind)
			assert.Nil(t, acct.History[0].Amount)
			assert.Equal(t, tt.wantNote, acct.History[0].Note)
			assert.True(t, acct.LastRewardAt.IsZero())
		})
	}
}

func TestNewTransactionID(t *testing.T) {
	at := time.UnixMilli(1709294400123)
	id := NewTransactionID(at)
	assert.Regexp(t, regexp.MustCompile(`^TXN-1709294400123-[0-9a-z]{6}$`), id)
	assert.NotEqual(t, id, NewTransactionID(at))
}

func TestReferralCodeFor(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.Equal(t, "REF-9F3A", e.ReferralCodeFor("0d5c8e2b-77aa-4c1e-b1d0-5e6a2c7b9f3a"))
	assert.Equal(t, "REF-AB", e.ReferralCodeFor("ab"))
}

func TestReset(t *testing.T) {
	e, clock := newTestEngine(t)
	acct := funded(t, e, clock, "40.00")
	res, err := e.ApplyReferral(acct, "REF-1234")
	require.NoError(t, err)
	acct = res.Account
	acct.Version = 7

	out := e.Reset(acct)
	next := out.Account
	assert.Equal(t, acct.ID, next.ID)
	assert.Equal(t, acct.Name, next.Name)
	assert.Equal(t, int64(7), next.Version)
	assert.True(t, next.Balance.IsZero())
	assert.True(t, next.LastRewardAt.IsZero())
	assert.Empty(t, next.UsedReferral)
	assert.Equal(t, ReferralProgress{}, next.ReferralProgress)
	assert.False(t, next.ReferralBonusClaimed)
	require.Len(t, next.History, 1)
	assert.Equal(t, KindSignup, next.History[0].Kind)
	assert.Equal(t, "Account data reset.", next.History[0].Note)
	assert.True(t, next.LedgerBalance().Equal(next.Balance))
}

func TestLedgerBalanceIgnoresFailedWithdrawals(t *testing.T) {
	failed := dec("-20")
	earned := dec("30")
	acct := Account{
		Balance: dec("30"),
		History: []Transaction{
			{Kind: KindEarn, Amount: &earned},
			{Kind: KindWithdraw, Amount: &failed, Status: StatusFailed},
			{Kind: KindBonus},
		},
	}
	assert.True(t, acct.LedgerBalance().Equal(dec("30")))
}

func TestNewestFirst(t *testing.T) {
	acct := Account{History: []Transaction{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	got := acct.NewestFirst()
	assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "a", acct.History[0].ID)
}
