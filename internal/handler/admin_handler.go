package handler

import (
	"net/http"
	"strconv"

	"earnx/internal/ledger"
	"earnx/internal/middleware"
	"earnx/internal/models"
	"earnx/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuditReader reads the audit trail of one resource.
type AuditReader interface {
	ListByResource(resource, resourceID string, limit int) ([]models.AuditLog, error)
}

type AdminHandler struct {
	ledgerSvc *service.LedgerService
	audit     AuditReader
	log       *logrus.Entry
}

func NewAdminHandler(ledgerSvc *service.LedgerService, audit AuditReader, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		ledgerSvc: ledgerSvc,
		audit:     audit,
		log:       log.WithField("component", "admin_handler"),
	}
}

// ListWithdrawals handles GET /admin/withdrawals?status=&page=&limit=.
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	status := ledger.Status(c.Query("status"))
	switch status {
	case "", ledger.StatusPending, ledger.StatusCompleted, ledger.StatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be pending, completed or failed", "code": "VALIDATION"})
		return
	}
	page, limit := parsePagination(c)
	listing, err := h.ledgerSvc.ListWithdrawals(c.Request.Context(), status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	total := len(listing.Withdrawals)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	c.JSON(http.StatusOK, gin.H{
		"data":             listing.Withdrawals[start:end],
		"total":            total,
		"page":             page,
		"limit":            limit,
		"skipped_accounts": listing.Skipped,
	})
}

// ResolveWithdrawal handles POST /admin/accounts/:account_id/withdrawals/:tx_id/resolve.
func (h *AdminHandler) ResolveWithdrawal(c *gin.Context) {
	var req struct {
		Outcome string `json:"outcome" binding:"required"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.ledgerSvc.ResolveWithdrawal(
		c.Request.Context(),
		actorFrom(c, middleware.GetUserID(c)),
		c.Param("account_id"),
		c.Param("tx_id"),
		ledger.Status(req.Outcome),
		req.Reason,
	)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction": res.Updated,
		"account_id":  res.Account.ID,
		"balance":     res.Account.Balance,
		"version":     res.Account.Version,
	})
}

// WithdrawalAudit handles GET /admin/withdrawals/:tx_id/audit.
func (h *AdminHandler) WithdrawalAudit(c *gin.Context) {
	_, limit := parsePagination(c)
	logs, err := h.audit.ListByResource("withdrawal", c.Param("tx_id"), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
