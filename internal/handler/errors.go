package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"earnx/internal/auth"
	"earnx/internal/ledger"
	"earnx/internal/repository"
	"earnx/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps service and ledger errors onto HTTP responses. Anything
// unrecognised is an integration failure and is logged.
func respondError(c *gin.Context, log *logrus.Entry, err error) {
	var rej *ledger.Rejection
	if errors.As(err, &rej) {
		status := http.StatusBadRequest
		switch {
		case rej.Code == ledger.ErrRateLimited.Code:
			status = http.StatusTooManyRequests
			if rej.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rej.RetryAfter.Seconds()))))
			}
		case rej.Class == ledger.ClassPolicy:
			status = http.StatusConflict
		case rej.Class == ledger.ClassNotFound:
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": rej.Message, "code": rej.Code})
		return
	}

	status, code := http.StatusInternalServerError, "STORE_UNAVAILABLE"
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		status, code = http.StatusNotFound, "ACCOUNT_NOT_FOUND"
	case errors.Is(err, repository.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, repository.ErrAccountExists):
		status, code = http.StatusConflict, "ACCOUNT_EXISTS"
	case errors.Is(err, service.ErrUnknownTask):
		status, code = http.StatusBadRequest, "UNKNOWN_TASK"
	case errors.Is(err, service.ErrEmailInUse):
		status, code = http.StatusConflict, "EMAIL_IN_USE"
	case errors.Is(err, service.ErrWeakPassword):
		status, code = http.StatusBadRequest, "WEAK_PASSWORD"
	case errors.Is(err, service.ErrInvalidPhone):
		status, code = http.StatusBadRequest, "INVALID_PHONE"
	case errors.Is(err, service.ErrMissingFields):
		status, code = http.StatusBadRequest, "MISSING_FIELDS"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, auth.ErrInvalidToken):
		status, code = http.StatusUnauthorized, "INVALID_TOKEN"
	case errors.Is(err, service.ErrEmailUnverified):
		status, code = http.StatusForbidden, "EMAIL_NOT_VERIFIED"
	case errors.Is(err, service.ErrNotAdmin):
		status, code = http.StatusForbidden, "FORBIDDEN"
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(status, gin.H{"error": "service temporarily unavailable, please retry", "code": code})
		return
	}
	if status == http.StatusConflict && code == "CONFLICT" {
		c.JSON(status, gin.H{"error": "account was modified concurrently, please retry", "code": code})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
}

func actorFrom(c *gin.Context, userID string) service.Actor {
	return service.Actor{UserID: userID, IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
