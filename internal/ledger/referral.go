package ledger

import (
	"fmt"
	"strings"
)

func (e *Engine) ApplyReferral(acct Account, code string) (Result, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Result{}, ErrEmptyCode
	}
	if acct.UsedReferral != "" {
		return Result{}, reject(ErrAlreadyUsed, "referral code %s has already been applied", acct.UsedReferral)
	}
	if !e.validCode(code) {
		return Result{}, reject(ErrInvalidFormat, "referral code must start with %s", e.rules.ReferralPrefix)
	}

	next := acct.clone()
	next.UsedReferral = code
	next.ReferralProgress = ReferralProgress{}
	next.ReferralBonusClaimed = false
	logged := e.entry(e.now(), KindBonus, nil,
		fmt.Sprintf("Referral code applied (%s). Complete tasks to unlock bonus.", code))
	next.History = append(next.History, logged)
	return Result{Account: next, Appended: []Transaction{logged}}, nil
}
