package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Audit actions.
const (
	AuditSignup            = "signup"
	AuditLogin             = "login"
	AuditGoogleLogin       = "google_oauth_login"
	AuditLogout            = "logout"
	AuditAdminLogin        = "admin_login"
	AuditResolveWithdrawal = "resolve_withdrawal"
	AuditReset             = "account_reset"
)

// Ledger event types, shared by the websocket feed and the event publisher.
const (
	EventAccountOpened       = "account.opened"
	EventRewardGranted       = "reward.granted"
	EventReferralApplied     = "referral.applied"
	EventReferralBonus       = "referral.bonus_unlocked"
	EventWithdrawalRequested = "withdrawal.requested"
	EventWithdrawalResolved  = "withdrawal.resolved"
	EventAccountReset        = "account.reset"
)

// Supported payout rails.
var WithdrawalMethods = []string{"paytm", "phonepe", "upi"}
