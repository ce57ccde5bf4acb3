package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type WithdrawalRequest struct {
	Amount      decimal.Decimal
	Method      string
	Destination string
}

var hundred = decimal.NewFromInt(100)

// ValidAmount reports whether amount is positive with at most two decimals.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

// Quote returns the fee and the payout for a withdrawal amount, both rounded
// half-up to the minor unit.
func (e *Engine) Quote(amount decimal.Decimal) (fee, payout decimal.Decimal) {
	fee = amount.Mul(e.rules.WithdrawalFeePercent).Div(hundred).Round(2)
	return fee, amount.Sub(fee)
}

// RequestWithdrawal debits the full amount immediately and records a pending
// withdraw entry.
func (e *Engine) RequestWithdrawal(acct Account, req WithdrawalRequest) (Result, error) {
	if !ValidAmount(req.Amount) {
		return Result{}, ErrInvalidAmount
	}
	if req.Amount.LessThan(e.rules.MinWithdrawal) {
		return Result{}, reject(ErrBelowMinimum, "minimum withdrawal is %s INR", e.rules.MinWithdrawal.StringFixed(2))
	}
	if req.Amount.GreaterThan(acct.Balance) {
		return Result{}, reject(ErrInsufficientBalance, "insufficient balance: requested %s INR, available %s INR",
			req.Amount.StringFixed(2), acct.Balance.StringFixed(2))
	}
	dest := strings.TrimSpace(req.Destination)
	if dest == "" {
		return Result{}, ErrMissingDestination
	}

	amount := req.Amount.Round(2)
	fee, payout := e.Quote(amount)
	method := strings.ToUpper(strings.TrimSpace(req.Method))

	next := acct.clone()
	next.Balance = next.Balance.Sub(amount)
	tx := e.entry(e.now(), KindWithdraw, money(amount.Neg()),
		fmt.Sprintf("Withdrawal to %s via %s. You will receive %s INR.", dest, method, payout.StringFixed(2)))
	tx.Status = StatusPending
	tx.Withdrawal = &WithdrawalDetails{
		Method:      method,
		Destination: dest,
		Fee:         fee,
		Payout:      payout,
	}
	next.History = append(next.History, tx)
	return Result{Account: next, Appended: []Transaction{tx}}, nil
}

// ResolveWithdrawal moves a pending withdrawal to a terminal status. A failed
// withdrawal refunds its debit in the same update.
func (e *Engine) ResolveWithdrawal(acct Account, txID string, outcome Status, reason string) (Result, error) {
	if outcome != StatusCompleted && outcome != StatusFailed {
		return Result{}, reject(ErrInvalidOutcome, "unknown outcome %q", outcome)
	}
	idx := acct.FindTransaction(txID)
	if idx < 0 {
		return Result{}, reject(ErrNotFound, "transaction %s not found", txID)
	}
	current := acct.History[idx]
	if current.Kind != KindWithdraw {
		return Result{}, reject(ErrNotPending, "transaction %s is not a withdrawal", txID)
	}
	if current.Status != StatusPending {
		return Result{}, reject(ErrNotPending, "withdrawal %s is already %s", txID, current.Status)
	}

	next := acct.clone()
	updated := current
	updated.Status = outcome
	if outcome == StatusFailed {
		reason = strings.TrimSpace(reason)
		if reason != "" {
			updated.Note = fmt.Sprintf("%s (Cancelled: %s)", current.Note, reason)
		} else {
			updated.Note = current.Note + " (Cancelled)"
		}
		if current.Amount != nil {
			next.Balance = next.Balance.Add(current.Amount.Abs())
		}
	}
	next.History[idx] = updated
	return Result{Account: next, Updated: &updated}, nil
}
