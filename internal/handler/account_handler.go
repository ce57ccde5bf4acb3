package handler

import (
	"net/http"

	"earnx/internal/domain"
	"earnx/internal/ledger"
	"earnx/internal/middleware"
	"earnx/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AccountHandler serves the signed-in user's own ledger.
type AccountHandler struct {
	svc *service.LedgerService
	log *logrus.Entry
}

func NewAccountHandler(svc *service.LedgerService, log *logrus.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, log: log.WithField("component", "account_handler")}
}

// GetAccount handles GET /me/account.
func (h *AccountHandler) GetAccount(c *gin.Context) {
	acct, err := h.svc.Account(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.View(acct))
}

// GetReferral handles GET /me/referral.
func (h *AccountHandler) GetReferral(c *gin.Context) {
	acct, err := h.svc.Account(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	v := h.svc.View(acct)
	c.JSON(http.StatusOK, gin.H{
		"referral_code":          v.ReferralCode,
		"used_referral":          v.UsedReferral,
		"referral_progress":      v.ReferralProgress,
		"referral_targets":       v.ReferralTargets,
		"referral_bonus_claimed": v.ReferralBonusClaimed,
		"referral_bonus":         h.svc.Engine().Rules().ReferralBonus,
	})
}

// ApplyReferral handles POST /me/referral.
func (h *AccountHandler) ApplyReferral(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.ApplyReferral(c.Request.Context(), middleware.GetUserID(c), req.Code)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respond(c, http.StatusOK, res)
}

// ClaimReward handles POST /me/rewards. The reward comes from the task catalog.
func (h *AccountHandler) ClaimReward(c *gin.Context) {
	var req struct {
		TaskID string `json:"task_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.ClaimTask(c.Request.Context(), middleware.GetUserID(c), req.TaskID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respond(c, http.StatusOK, res)
}

type WithdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" binding:"required,oneof=paytm phonepe upi"`
	Destination string          `json:"destination"`
}

// RequestWithdrawal handles POST /me/withdrawals.
func (h *AccountHandler) RequestWithdrawal(c *gin.Context) {
	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.RequestWithdrawal(c.Request.Context(), middleware.GetUserID(c), ledger.WithdrawalRequest{
		Amount:      req.Amount,
		Method:      req.Method,
		Destination: req.Destination,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respond(c, http.StatusCreated, res)
}

// QuoteWithdrawal handles GET /me/withdrawals/quote?amount=.
func (h *AccountHandler) QuoteWithdrawal(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || !ledger.ValidAmount(amount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ledger.ErrInvalidAmount.Message, "code": ledger.ErrInvalidAmount.Code})
		return
	}
	rules := h.svc.Engine().Rules()
	fee, payout := h.svc.Engine().Quote(amount)
	c.JSON(http.StatusOK, gin.H{
		"amount":         amount.StringFixed(2),
		"fee":            fee.StringFixed(2),
		"payout":         payout.StringFixed(2),
		"fee_percent":    rules.WithdrawalFeePercent,
		"min_withdrawal": rules.MinWithdrawal.StringFixed(2),
		"methods":        domain.WithdrawalMethods,
	})
}

// Reset handles POST /me/reset.
func (h *AccountHandler) Reset(c *gin.Context) {
	userID := middleware.GetUserID(c)
	res, err := h.svc.Reset(c.Request.Context(), actorFrom(c, userID), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respond(c, http.StatusOK, res)
}

func (h *AccountHandler) respond(c *gin.Context, status int, res ledger.Result) {
	c.JSON(status, service.AccountEvent{
		Account:  h.svc.View(res.Account),
		Appended: res.Appended,
		Updated:  res.Updated,
	})
}
