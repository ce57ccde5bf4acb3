package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"earnx/internal/domain"
	"earnx/internal/events"
	"earnx/internal/ledger"
	"earnx/internal/metrics"
	"earnx/internal/models"
	"earnx/internal/repository"
	"earnx/internal/ws"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AccountStore persists account documents with an optimistic version check.
type AccountStore interface {
	Get(ctx context.Context, id string) (ledger.Account, error)
	Create(ctx context.Context, acct ledger.Account) (ledger.Account, error)
	Update(ctx context.Context, acct ledger.Account, expectedVersion int64) (ledger.Account, error)
	ListAll(ctx context.Context) ([]ledger.Account, int, error)
	Delete(ctx context.Context, id string) error
}

type AuditRecorder interface {
	Create(log *models.AuditLog) error
}

// Notifier pushes committed changes to connected clients.
type Notifier interface {
	BroadcastToUser(userID string, msg ws.Message)
	BroadcastToRole(role string, msg ws.Message)
}

var (
	_ AccountStore = (*repository.AccountRepository)(nil)
	_ AccountStore = (*repository.MemoryAccountStore)(nil)
	_ Notifier     = (*ws.Hub)(nil)
)

// Actor identifies who triggered a transition, for the audit trail.
type Actor struct {
	UserID    string
	IP        string
	UserAgent string
}

// AccountView is the account as rendered to clients: history newest first
// plus derived referral fields.
type AccountView struct {
	ID                   string                  `json:"id"`
	Name                 string                  `json:"name"`
	Balance              decimal.Decimal         `json:"balance"`
	LastRewardAt         *time.Time              `json:"last_reward_at"`
	NextRewardAt         *time.Time              `json:"next_reward_at"`
	ReferralCode         string                  `json:"referral_code"`
	UsedReferral         string                  `json:"used_referral,omitempty"`
	ReferralProgress     ledger.ReferralProgress `json:"referral_progress"`
	ReferralTargets      ledger.ReferralProgress `json:"referral_targets"`
	ReferralBonusClaimed bool                    `json:"referral_bonus_claimed"`
	History              []ledger.Transaction    `json:"history"`
	Version              int64                   `json:"version"`
}

// AccountEvent is what a transition pushes to websocket clients.
type AccountEvent struct {
	Account  AccountView          `json:"account"`
	Appended []ledger.Transaction `json:"appended,omitempty"`
	Updated  *ledger.Transaction  `json:"updated,omitempty"`
}

type eventPayload struct {
	Balance  decimal.Decimal      `json:"balance"`
	Version  int64                `json:"version"`
	Appended []ledger.Transaction `json:"appended,omitempty"`
	Updated  *ledger.Transaction  `json:"updated,omitempty"`
}

// WithdrawalListing is the admin view across all accounts.
type WithdrawalListing struct {
	Withdrawals []ledger.WithdrawalView `json:"withdrawals"`
	Skipped     int                     `json:"skipped_accounts"`
}

type LedgerService struct {
	engine     *ledger.Engine
	store      AccountStore
	catalog    *TaskCatalog
	publisher  events.Publisher
	notifier   Notifier
	audit      AuditRecorder
	maxRetries int
	log        *logrus.Entry
}

func NewLedgerService(
	engine *ledger.Engine,
	store AccountStore,
	catalog *TaskCatalog,
	publisher events.Publisher,
	notifier Notifier,
	audit AuditRecorder,
	maxRetries int,
	log *logrus.Logger,
) *LedgerService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &LedgerService{
		engine:     engine,
		store:      store,
		catalog:    catalog,
		publisher:  publisher,
		notifier:   notifier,
		audit:      audit,
		maxRetries: maxRetries,
		log:        log.WithField("component", "ledger"),
	}
}

func (s *LedgerService) Engine() *ledger.Engine { return s.engine }

// Open creates the account document for a new identity.
func (s *LedgerService) Open(ctx context.Context, id, name, referralCode string) (ledger.Account, error) {
	acct, err := s.store.Create(ctx, s.engine.Open(id, name, referralCode))
	if err != nil {
		metrics.RecordTransition("open", "error")
		return ledger.Account{}, fmt.Errorf("open account: %w", err)
	}
	metrics.RecordTransition("open", "ok")
	s.publish(ctx, domain.EventAccountOpened, acct, ledger.Result{Account: acct, Appended: acct.History})
	return acct, nil
}

func (s *LedgerService) Account(ctx context.Context, id string) (ledger.Account, error) {
	acct, err := s.store.Get(ctx, id)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("load account: %w", err)
	}
	return acct, nil
}

// Snapshot returns the client view of an account; used by the websocket feed.
func (s *LedgerService) Snapshot(ctx context.Context, id string) (any, error) {
	acct, err := s.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.View(acct), nil
}

func (s *LedgerService) View(acct ledger.Account) AccountView {
	rules := s.engine.Rules()
	v := AccountView{
		ID:                   acct.ID,
		Name:                 acct.Name,
		Balance:              acct.Balance,
		ReferralCode:         s.engine.ReferralCodeFor(acct.ID),
		UsedReferral:         acct.UsedReferral,
		ReferralProgress:     acct.ReferralProgress,
		ReferralTargets:      ledger.ReferralProgress{AdsWatched: rules.ReferralAdsNeeded, TasksCompleted: rules.ReferralTasksNeeded},
		ReferralBonusClaimed: acct.ReferralBonusClaimed,
		History:              acct.NewestFirst(),
		Version:              acct.Version,
	}
	if !acct.LastRewardAt.IsZero() {
		last := acct.LastRewardAt
		next := last.Add(rules.RewardCooldown)
		v.LastRewardAt = &last
		v.NextRewardAt = &next
	}
	return v
}

// ClaimTask grants the catalog reward for taskID.
func (s *LedgerService) ClaimTask(ctx context.Context, accountID, taskID string) (ledger.Result, error) {
	task, err := s.catalog.Get(taskID)
	if err != nil {
		return ledger.Result{}, err
	}
	if !task.RewardAmount.IsPositive() {
		return ledger.Result{}, fmt.Errorf("task %s has no reward: %w", taskID, ledger.ErrInvalidAmount)
	}
	return s.GrantReward(ctx, accountID, task.Reward())
}

func (s *LedgerService) GrantReward(ctx context.Context, accountID string, reward ledger.Reward) (ledger.Result, error) {
	res, err := s.mutate(ctx, "grant_reward", accountID, func(acct ledger.Account) (ledger.Result, error) {
		return s.engine.GrantReward(acct, reward)
	})
	if err != nil {
		return res, err
	}
	s.afterCommit(ctx, domain.EventRewardGranted, res)
	if len(res.Appended) > 1 {
		s.log.WithFields(logrus.Fields{"account_id": accountID, "code": res.Account.UsedReferral}).Info("referral bonus unlocked")
		s.publish(ctx, domain.EventReferralBonus, res.Account, ledger.Result{Account: res.Account, Appended: res.Appended[1:]})
	}
	return res, nil
}

func (s *LedgerService) ApplyReferral(ctx context.Context, accountID, code string) (ledger.Result, error) {
	res, err := s.mutate(ctx, "apply_referral", accountID, func(acct ledger.Account) (ledger.Result, error) {
		return s.engine.ApplyReferral(acct, code)
	})
	if err != nil {
		return res, err
	}
	s.afterCommit(ctx, domain.EventReferralApplied, res)
	return res, nil
}

func (s *LedgerService) RequestWithdrawal(ctx context.Context, accountID string, req ledger.WithdrawalRequest) (ledger.Result, error) {
	res, err := s.mutate(ctx, "request_withdrawal", accountID, func(acct ledger.Account) (ledger.Result, error) {
		return s.engine.RequestWithdrawal(acct, req)
	})
	if err != nil {
		return res, err
	}
	tx := res.Appended[0]
	amount, _ := tx.Amount.Abs().Float64()
	metrics.RecordWithdrawalAmount("requested", amount)
	s.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"tx_id":      tx.ID,
		"amount":     tx.Amount.Abs().StringFixed(2),
		"method":     tx.Withdrawal.Method,
	}).Info("withdrawal requested")
	s.afterCommit(ctx, domain.EventWithdrawalRequested, res)
	s.notifyAdmins(domain.EventWithdrawalRequested, res.Account, tx)
	return res, nil
}

// ResolveWithdrawal is the operator transition on another user's account.
func (s *LedgerService) ResolveWithdrawal(ctx context.Context, actor Actor, accountID, txID string, outcome ledger.Status, reason string) (ledger.Result, error) {
	res, err := s.mutate(ctx, "resolve_withdrawal", accountID, func(acct ledger.Account) (ledger.Result, error) {
		return s.engine.ResolveWithdrawal(acct, txID, outcome, reason)
	})
	if err != nil {
		return res, err
	}
	tx := *res.Updated
	amount, _ := tx.Amount.Abs().Float64()
	if outcome == ledger.StatusFailed {
		metrics.RecordWithdrawalAmount("refunded", amount)
	} else {
		metrics.RecordWithdrawalAmount("completed", amount)
	}
	s.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"tx_id":      txID,
		"outcome":    outcome,
		"admin_id":   actor.UserID,
	}).Info("withdrawal resolved")
	s.recordAudit(actor, domain.AuditResolveWithdrawal, "withdrawal", txID,
		fmt.Sprintf(`{"account_id":%q,"outcome":%q,"reason":%q}`, accountID, outcome, reason))
	s.afterCommit(ctx, domain.EventWithdrawalResolved, res)
	s.notifyAdmins(domain.EventWithdrawalResolved, res.Account, tx)
	return res, nil
}

func (s *LedgerService) Reset(ctx context.Context, actor Actor, accountID string) (ledger.Result, error) {
	res, err := s.mutate(ctx, "reset", accountID, func(acct ledger.Account) (ledger.Result, error) {
		return s.engine.Reset(acct), nil
	})
	if err != nil {
		return res, err
	}
	s.recordAudit(actor, domain.AuditReset, "account", accountID, "")
	s.afterCommit(ctx, domain.EventAccountReset, res)
	return res, nil
}

// ListWithdrawals aggregates withdraw entries across every account. An empty
// status lists all of them.
func (s *LedgerService) ListWithdrawals(ctx context.Context, status ledger.Status) (WithdrawalListing, error) {
	accounts, skipped, err := s.store.ListAll(ctx)
	if err != nil {
		return WithdrawalListing{}, fmt.Errorf("list withdrawals: %w", err)
	}
	if skipped > 0 {
		s.log.WithField("skipped", skipped).Warn("withdrawal listing skipped malformed accounts")
	}
	views := ledger.ListWithdrawals(accounts, status)
	if views == nil {
		views = []ledger.WithdrawalView{}
	}
	return WithdrawalListing{Withdrawals: views, Skipped: skipped}, nil
}

// mutate runs read, compute, write. A stale write is retried from a fresh
// read up to maxRetries times; a failed write leaves nothing applied.
func (s *LedgerService) mutate(ctx context.Context, op, accountID string, fn func(ledger.Account) (ledger.Result, error)) (ledger.Result, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.store.Get(ctx, accountID)
		if err != nil {
			metrics.RecordTransition(op, "error")
			return ledger.Result{}, fmt.Errorf("%s: %w", op, err)
		}
		res, err := fn(current)
		if err != nil {
			var rej *ledger.Rejection
			if errors.As(err, &rej) {
				metrics.RecordTransition(op, rej.Code)
			} else {
				metrics.RecordTransition(op, "error")
			}
			return ledger.Result{}, err
		}
		saved, err := s.store.Update(ctx, res.Account, current.Version)
		if errors.Is(err, repository.ErrConflict) && attempt < s.maxRetries {
			metrics.RecordConflictRetry(op)
			s.log.WithFields(logrus.Fields{"op": op, "account_id": accountID, "attempt": attempt}).Debug("version conflict, retrying")
			continue
		}
		if err != nil {
			metrics.RecordTransition(op, "error")
			return ledger.Result{}, fmt.Errorf("%s: %w", op, err)
		}
		res.Account = saved
		metrics.RecordTransition(op, "ok")
		return res, nil
	}
}

func (s *LedgerService) afterCommit(ctx context.Context, eventType string, res ledger.Result) {
	s.publish(ctx, eventType, res.Account, res)
	if s.notifier != nil {
		s.notifier.BroadcastToUser(res.Account.ID, ws.Message{
			Type: eventType,
			Data: AccountEvent{Account: s.View(res.Account), Appended: res.Appended, Updated: res.Updated},
		})
	}
}

func (s *LedgerService) notifyAdmins(eventType string, acct ledger.Account, tx ledger.Transaction) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastToRole(domain.RoleAdmin, ws.Message{
		Type: eventType,
		Data: ledger.WithdrawalView{Transaction: tx, AccountID: acct.ID, AccountName: acct.Name},
	})
}

// publish is best effort: the write is already durable.
func (s *LedgerService) publish(ctx context.Context, eventType string, acct ledger.Account, res ledger.Result) {
	payload := eventPayload{Balance: acct.Balance, Version: acct.Version, Appended: res.Appended, Updated: res.Updated}
	if err := s.publisher.Publish(ctx, events.New(eventType, acct.ID, payload)); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"type": eventType, "account_id": acct.ID}).Warn("event publish failed")
	}
}

func (s *LedgerService) recordAudit(actor Actor, action, resource, resourceID, metadata string) {
	if s.audit == nil {
		return
	}
	var userID *string
	if actor.UserID != "" {
		id := actor.UserID
		userID = &id
	}
	if err := s.audit.Create(&models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
		Metadata:   metadata,
	}); err != nil {
		s.log.WithError(err).WithField("action", action).Warn("audit write failed")
	}
}
