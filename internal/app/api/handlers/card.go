package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	mw "github.com/fatflowers/membercard/internal/app/api/middleware"
	"github.com/fatflowers/membercard/internal/app/service/ledger"
	"github.com/fatflowers/membercard/internal/app/service/pricing"
	"github.com/fatflowers/membercard/internal/models"
	"github.com/fatflowers/membercard/pkg/response"
)

type CardInfo struct {
	Balance        decimal.Decimal `json:"balance"`
	Status         string          `json:"status"`
	ExpiredAt      time.Time       `json:"expired_at"`
	DailyFreeLimit decimal.Decimal `json:"daily_free_limit"`
}

// ApiGetCard returns the caller's member card, creating it on first access.
func ApiGetCard(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mw.UserIDFrom(c)
		if !ok {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeForbidden, "not authenticated"))
			return
		}
		card, err := svc.GetOrCreateCard(c.Request.Context(), userID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&CardInfo{
			Balance:        card.Balance,
			Status:         string(card.Status),
			ExpiredAt:      card.ExpiredAt,
			DailyFreeLimit: card.DailyFreeLimit,
		}))
	}
}

type UseAppRequest struct {
	AppID string `json:"app_id" binding:"required"`
}

// ApiUseApp charges one use of an app against quota first, then balance.
func ApiUseApp(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mw.UserIDFrom(c)
		if !ok {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeForbidden, "not authenticated"))
			return
		}
		var req UseAppRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.DeductForAppUse(c.Request.Context(), userID, req.AppID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// ApiGetQuota returns today's free-quota state for the caller.
func ApiGetQuota(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mw.UserIDFrom(c)
		if !ok {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeForbidden, "not authenticated"))
			return
		}
		info, err := svc.GetQuotaInfo(c.Request.Context(), userID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(info))
	}
}

type TransactionItem struct {
	TransactionNo  string          `json:"transaction_no"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	RelatedAppID   *string         `json:"related_app_id,omitempty"`
	ThirdPartyTxID *string         `json:"third_party_txid,omitempty"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type ListTransactionsResponse struct {
	Items []*TransactionItem `json:"items"`
	Total int64              `json:"total"`
}

func toTransactionItem(m models.Transaction) *TransactionItem {
	return &TransactionItem{
		TransactionNo:  m.TransactionNo,
		Type:           string(m.Type),
		Amount:         m.Amount,
		Status:         string(m.Status),
		RelatedAppID:   m.RelatedAppID,
		ThirdPartyTxID: m.ThirdPartyTxID,
		SettledAt:      m.SettledAt,
		CreatedAt:      m.CreatedAt,
	}
}

// ApiListTransactions pages the caller's ledger history, newest first.
func ApiListTransactions(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mw.UserIDFrom(c)
		if !ok {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeForbidden, "not authenticated"))
			return
		}
		var req struct {
			Page     int `form:"page,default=1"`
			PageSize int `form:"page_size,default=20"`
		}
		if err := c.ShouldBindQuery(&req); err != nil {
			badRequest(c, err)
			return
		}
		rows, total, err := svc.ListTransactions(c.Request.Context(), userID, req.Page, req.PageSize)
		if err != nil {
			fail(c, err)
			return
		}
		items := lo.Map(rows, func(m models.Transaction, _ int) *TransactionItem { return toTransactionItem(m) })
		c.JSON(http.StatusOK, response.OKT(&ListTransactionsResponse{Items: items, Total: total}))
	}
}

// ApiListApps returns the app price catalog.
func ApiListApps(svc *pricing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := svc.ListApps(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(apps))
	}
}

func RegisterCardRoutes(r gin.IRouter, ledgerSvc *ledger.Service, pricingSvc *pricing.Service) {
	r.GET("/card", ApiGetCard(ledgerSvc))
	r.POST("/card/use_app", ApiUseApp(ledgerSvc))
	r.GET("/card/quota", ApiGetQuota(ledgerSvc))
	r.GET("/card/transactions", ApiListTransactions(ledgerSvc))
	r.GET("/apps", ApiListApps(pricingSvc))
}
