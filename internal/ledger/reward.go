package ledger

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Reward describes one completed ad or task. A zero Amount pays the configured
// default; the description is display text only.
type Reward struct {
	Description string
	Amount      decimal.Decimal
	Category    Category
}

func (e *Engine) GrantReward(acct Account, r Reward) (Result, error) {
	if !r.Category.Valid() {
		return Result{}, reject(ErrInvalidCategory, "unknown reward category %q", r.Category)
	}
	if r.Amount.IsNegative() {
		return Result{}, reject(ErrInvalidAmount, "reward amount must not be negative")
	}

	now := e.now()
	if !acct.LastRewardAt.IsZero() {
		elapsed := now.Sub(acct.LastRewardAt)
		if elapsed < e.rules.RewardCooldown {
			wait := e.rules.RewardCooldown - elapsed
			rej := reject(ErrRateLimited, "please wait %d seconds before claiming another reward", int(math.Ceil(wait.Seconds())))
			rej.RetryAfter = wait
			return Result{}, rej
		}
	}

	amount := r.Amount
	if amount.IsZero() {
		amount = e.rules.RewardAmount
	}
	note := r.Description
	if note == "" {
		switch r.Category {
		case CategoryAd:
			note = fmt.Sprintf("Watched Ad for %s INR", amount.StringFixed(2))
		default:
			note = fmt.Sprintf("Completed task for %s INR", amount.StringFixed(2))
		}
	}

	next := acct.clone()
	next.Balance = next.Balance.Add(amount)
	next.LastRewardAt = now.UTC()
	earn := e.entry(now, KindEarn, money(amount), note)
	next.History = append(next.History, earn)
	appended := []Transaction{earn}

	if next.ReferralPending() {
		switch r.Category {
		case CategoryAd:
			next.ReferralProgress.AdsWatched = min(next.ReferralProgress.AdsWatched+1, e.rules.ReferralAdsNeeded)
		case CategoryTask:
			next.ReferralProgress.TasksCompleted = min(next.ReferralProgress.TasksCompleted+1, e.rules.ReferralTasksNeeded)
		}
		if next.ReferralProgress.AdsWatched >= e.rules.ReferralAdsNeeded &&
			next.ReferralProgress.TasksCompleted >= e.rules.ReferralTasksNeeded {
			bonus := e.entry(now, KindBonus, money(e.rules.ReferralBonus),
				fmt.Sprintf("Referral bonus unlocked! (%s)", next.UsedReferral))
			next.Balance = next.Balance.Add(e.rules.ReferralBonus)
			next.ReferralBonusClaimed = true
			next.History = append(next.History, bonus)
			appended = append(appended, bonus)
		}
	}

	return Result{Account: next, Appended: appended}, nil
}
