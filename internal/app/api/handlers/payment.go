package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	mw "github.com/fatflowers/membercard/internal/app/api/middleware"
	"github.com/fatflowers/membercard/internal/app/service/payment"
	"github.com/fatflowers/membercard/pkg/money"
	"github.com/fatflowers/membercard/pkg/response"
)

type TopupRequest struct {
	// Amount is a decimal string so clients never lose cents to float
	// serialization.
	Amount string `json:"amount" binding:"required"`
}

type TopupResponse struct {
	TransactionNo  string          `json:"transaction_no"`
	ThirdPartyTxID string          `json:"third_party_txid"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ApiTopup opens a pending top-up order and hands back the provider
// transaction id for the payment page.
func ApiTopup(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := mw.UserIDFrom(c)
		if !ok {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeForbidden, "not authenticated"))
			return
		}
		var req TopupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		amount, err := money.Parse(req.Amount)
		if err != nil {
			badRequest(c, err)
			return
		}
		order, err := svc.CreateOrder(c.Request.Context(), userID, amount)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&TopupResponse{
			TransactionNo:  order.TransactionNo,
			ThirdPartyTxID: *order.ThirdPartyTxID,
			Amount:         order.Amount,
			Status:         string(order.Status),
			CreatedAt:      order.CreatedAt,
		}))
	}
}

// ApiPaymentCallback settles a provider notification. Unauthenticated: the
// HMAC signature inside the payload is the authentication.
func ApiPaymentCallback(svc *payment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.CallbackRequest
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := svc.ApplyCallback(c.Request.Context(), &req); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT("success"))
	}
}

func RegisterPaymentRoutes(r gin.IRouter, svc *payment.Service) {
	r.POST("/payment/topup", ApiTopup(svc))
}

func RegisterPaymentCallbackRoutes(r gin.IRouter, svc *payment.Service) {
	r.POST("/payment/callback", ApiPaymentCallback(svc))
}
