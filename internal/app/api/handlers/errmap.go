package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/membercard/internal/app/service/ledger"
	"github.com/fatflowers/membercard/internal/app/service/payment"
	"github.com/fatflowers/membercard/internal/app/service/pricing"
	"github.com/fatflowers/membercard/internal/app/service/quota"
	"github.com/fatflowers/membercard/pkg/response"
)

// errCode maps service sentinels onto API response codes. Anything
// unrecognized is an internal error.
func errCode(err error) response.APIResponseCode {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return response.APIResponseCodeInsufficientBalance
	case errors.Is(err, ledger.ErrUserNotFound),
		errors.Is(err, ledger.ErrCardNotFound),
		errors.Is(err, quota.ErrCardNotFound),
		errors.Is(err, pricing.ErrAppNotFound),
		errors.Is(err, payment.ErrOrderNotFound):
		return response.APIResponseCodeNotFound
	case errors.Is(err, ledger.ErrCardFrozen),
		errors.Is(err, ledger.ErrCardExpired),
		errors.Is(err, payment.ErrInvalidSignature):
		return response.APIResponseCodeForbidden
	case errors.Is(err, payment.ErrOrderProcessed):
		return response.APIResponseCodeConflict
	case errors.Is(err, payment.ErrAmountMismatch),
		errors.Is(err, payment.ErrInvalidStatus),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidArgument),
		errors.Is(err, pricing.ErrInvalidPrice):
		return response.APIResponseCodeBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		// a lock that could not be acquired in time; the caller may retry
		return response.APIResponseCodeRetryable
	default:
		return response.APIResponseCodeError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorT[any](errCode(err), err.Error()))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
}
