package ledger

import (
	"sort"
)

// WithdrawalView is one withdraw entry with the account it belongs to.
type WithdrawalView struct {
	Transaction Transaction `json:"transaction"`
	AccountID   string      `json:"account_id"`
	AccountName string      `json:"account_name"`
}

// ListWithdrawals collects withdraw entries across accounts, newest first.
// An empty status selects every withdrawal.
func ListWithdrawals(accounts []Account, status Status) []WithdrawalView {
	var out []WithdrawalView
	for _, acct := range accounts {
		for _, tx := range acct.History {
			if tx.Kind != KindWithdraw {
				continue
			}
			if status != "" && tx.Status != status {
				continue
			}
			out = append(out, WithdrawalView{Transaction: tx, AccountID: acct.ID, AccountName: acct.Name})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Transaction, out[j].Transaction
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})
	return out
}

// ListPendingWithdrawals is the operator dashboard listing: every withdraw
// entry regardless of status, newest first.
func ListPendingWithdrawals(accounts []Account) []WithdrawalView {
	return ListWithdrawals(accounts, "")
}
