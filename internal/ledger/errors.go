package ledger

import (
	"fmt"
	"time"
)

type Class string

const (
	ClassValidation Class = "validation"
	ClassPolicy     Class = "policy"
	ClassNotFound   Class = "not_found"
)

// Rejection is returned when a transition's precondition fails. No state is
// changed when a Rejection is returned.
type Rejection struct {
	Code       string
	Class      Class
	Message    string
	RetryAfter time.Duration
}

func (r *Rejection) Error() string {
	return r.Message
}

// Is matches rejections by code so wrapped variants compare equal to the
// package sentinels.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Code == r.Code
}

var (
	ErrRateLimited         = &Rejection{Code: "RATE_LIMITED", Class: ClassPolicy, Message: "reward cooldown has not elapsed"}
	ErrInvalidCategory     = &Rejection{Code: "INVALID_CATEGORY", Class: ClassValidation, Message: "reward category must be ad or task"}
	ErrEmptyCode           = &Rejection{Code: "EMPTY_CODE", Class: ClassValidation, Message: "referral code is required"}
	ErrAlreadyUsed         = &Rejection{Code: "ALREADY_USED", Class: ClassPolicy, Message: "a referral code has already been applied"}
	ErrInvalidFormat       = &Rejection{Code: "INVALID_FORMAT", Class: ClassValidation, Message: "referral code format is invalid"}
	ErrInvalidAmount       = &Rejection{Code: "INVALID_AMOUNT", Class: ClassValidation, Message: "amount must be a positive value with at most two decimals"}
	ErrBelowMinimum        = &Rejection{Code: "BELOW_MINIMUM", Class: ClassPolicy, Message: "amount is below the minimum withdrawal"}
	ErrInsufficientBalance = &Rejection{Code: "INSUFFICIENT_BALANCE", Class: ClassPolicy, Message: "insufficient balance"}
	ErrMissingDestination  = &Rejection{Code: "MISSING_DESTINATION", Class: ClassValidation, Message: "destination is required"}
	ErrInvalidOutcome      = &Rejection{Code: "INVALID_OUTCOME", Class: ClassValidation, Message: "outcome must be completed or failed"}
	ErrNotFound            = &Rejection{Code: "NOT_FOUND", Class: ClassNotFound, Message: "transaction not found"}
	ErrNotPending          = &Rejection{Code: "NOT_PENDING", Class: ClassPolicy, Message: "transaction is not a pending withdrawal"}
)

func reject(base *Rejection, format string, args ...any) *Rejection {
	return &Rejection{
		Code:    base.Code,
		Class:   base.Class,
		Message: fmt.Sprintf(format, args...),
	}
}
