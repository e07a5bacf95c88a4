package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sprintyard/internal/apperr"
)

// statusOf maps an error kind to its HTTP status.
var statusOf = map[apperr.Kind]int{
	apperr.KindValidation:         http.StatusBadRequest,
	apperr.KindAccess:             http.StatusForbidden,
	apperr.KindNotFound:           http.StatusNotFound,
	apperr.KindConflict:           http.StatusConflict,
	apperr.KindQuotaExceeded:      http.StatusTooManyRequests,
	apperr.KindServiceUnavailable: http.StatusServiceUnavailable,
	apperr.KindPersistence:        http.StatusInternalServerError,
	apperr.KindInternal:           http.StatusInternalServerError,
}

type errorBody struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	ResetDate      string `json:"reset_date,omitempty"`
	QuotaRemaining *int   `json:"quota_remaining,omitempty"`
}

// abortWithError writes err as {"error": {...}} and stops the chain.
// Internal and persistence errors are logged and their detail hidden.
func abortWithError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusOf[kind]
	body := errorBody{Code: string(kind), Message: err.Error()}

	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Message != "" {
		body.Message = ae.Message
	}
	switch kind {
	case apperr.KindQuotaExceeded:
		zero := 0
		body.QuotaRemaining = &zero
		if ae != nil && !ae.ResetDate.IsZero() {
			body.ResetDate = ae.ResetDate.Format("2006-01-02")
		}
	case apperr.KindInternal, apperr.KindPersistence:
		logger(c).Error("request failed", "path", c.FullPath(), "error", err)
		if kind == apperr.KindInternal {
			body.Message = "internal error"
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func badRequest(c *gin.Context, format string, args ...any) {
	abortWithError(c, apperr.Validation(format, args...))
}
