package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/membercard/internal/app/service/ledger"
	"github.com/fatflowers/membercard/internal/app/service/payment"
	"github.com/fatflowers/membercard/internal/app/service/pricing"
	"github.com/fatflowers/membercard/internal/app/service/quota"
	"github.com/fatflowers/membercard/internal/models"
	"github.com/fatflowers/membercard/pkg/config"
	"github.com/fatflowers/membercard/pkg/money"
	"github.com/fatflowers/membercard/pkg/response"
	"github.com/fatflowers/membercard/pkg/types"
)

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid user_id"))
		return 0, false
	}
	return id, true
}

type ExtendExpiryRequest struct {
	Days int `json:"days" binding:"required"`
}

// ApiExtendExpiry pushes a card's validity out by N days.
func ApiExtendExpiry(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDParam(c)
		if !ok {
			return
		}
		var req ExtendExpiryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		expiredAt, err := svc.ExtendExpiry(c.Request.Context(), userID, req.Days)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]time.Time{"expired_at": expiredAt}))
	}
}

type FreeLimitRequest struct {
	Limit string `json:"limit" binding:"required"`
}

// ApiUpdateFreeLimit sets the standing daily free limit and applies it to
// today's quota.
func ApiUpdateFreeLimit(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDParam(c)
		if !ok {
			return
		}
		var req FreeLimitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		limit, err := money.Parse(req.Limit)
		if err != nil {
			badRequest(c, err)
			return
		}
		if err := svc.UpdateDailyFreeLimit(c.Request.Context(), userID, limit); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT("ok"))
	}
}

type FreezeRequest struct {
	Frozen *bool `json:"frozen" binding:"required"`
}

func ApiFreezeCard(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDParam(c)
		if !ok {
			return
		}
		var req FreezeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := svc.FreezeCard(c.Request.Context(), userID, *req.Frozen); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT("ok"))
	}
}

type AdjustBalanceRequest struct {
	Amount string `json:"amount" binding:"required"`
	// Kind is topup or deduction.
	Kind string `json:"kind" binding:"required"`
}

// ApiAdjustBalance applies a manual balance correction with its own
// settled ledger row.
func ApiAdjustBalance(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDParam(c)
		if !ok {
			return
		}
		var req AdjustBalanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		amount, err := money.Parse(req.Amount)
		if err != nil {
			badRequest(c, err)
			return
		}
		balance, err := svc.MutateBalance(c.Request.Context(), userID, amount, types.TransactionType(req.Kind))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]interface{}{"balance": balance}))
	}
}

type UpsertAppRequest struct {
	AppID       string `json:"app_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Price       string `json:"price" binding:"required"`
	Description string `json:"description"`
}

func ApiUpsertApp(svc *pricing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpsertAppRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		price, err := money.Parse(req.Price)
		if err != nil {
			badRequest(c, err)
			return
		}
		app := &models.AppPricing{
			AppID:       req.AppID,
			Name:        req.Name,
			Price:       price,
			Description: req.Description,
		}
		if err := svc.UpsertApp(c.Request.Context(), app); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(app))
	}
}

// ApiSweepOrders fails pending top-up orders past the configured max age.
func ApiSweepOrders(svc *payment.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		maxAge := time.Duration(cfg.Payment.OrderMaxAgeMinutes) * time.Minute
		swept, err := svc.SweepExpired(c.Request.Context(), maxAge)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]int{"swept": swept}))
	}
}

// ApiResetQuota re-initializes today's quota for every active card.
func ApiResetQuota(svc *quota.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		reset, err := svc.ResetAll(c.Request.Context(), time.Now())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]int{"reset": reset}))
	}
}

func RegisterAdminRoutes(r gin.IRouter, ledgerSvc *ledger.Service, pricingSvc *pricing.Service, paymentSvc *payment.Service, quotaSvc *quota.Service, cfg *config.Config) {
	r.POST("/card/:user_id/extend", ApiExtendExpiry(ledgerSvc))
	r.POST("/card/:user_id/free_limit", ApiUpdateFreeLimit(ledgerSvc))
	r.POST("/card/:user_id/freeze", ApiFreezeCard(ledgerSvc))
	r.POST("/card/:user_id/adjust", ApiAdjustBalance(ledgerSvc))
	r.POST("/apps", ApiUpsertApp(pricingSvc))
	r.POST("/payment/sweep", ApiSweepOrders(paymentSvc, cfg))
	r.POST("/quota/reset", ApiResetQuota(quotaSvc))
}
