package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func routeSet(r *gin.Engine) map[string]bool {
	set := make(map[string]bool)
	for _, rt := range r.Routes() {
		set[rt.Method+" "+rt.Path] = true
	}
	return set
}

func TestRegisterCardRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterCardRoutes(r.Group("/api/v1"), nil, nil)

	routes := routeSet(r)
	require.True(t, routes["GET /api/v1/card"])
	require.True(t, routes["POST /api/v1/card/use_app"])
	require.True(t, routes["GET /api/v1/card/quota"])
	require.True(t, routes["GET /api/v1/card/transactions"])
	require.True(t, routes["GET /api/v1/apps"])
}

func TestRegisterPaymentRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1"), nil)
	RegisterPaymentCallbackRoutes(r.Group("/api"), nil)

	routes := routeSet(r)
	require.True(t, routes["POST /api/v1/payment/topup"])
	require.True(t, routes["POST /api/payment/callback"])
}

func TestRegisterAdminRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/api/v1/admin"), nil, nil, nil, nil, nil)

	routes := routeSet(r)
	require.True(t, routes["POST /api/v1/admin/card/:user_id/extend"])
	require.True(t, routes["POST /api/v1/admin/card/:user_id/free_limit"])
	require.True(t, routes["POST /api/v1/admin/card/:user_id/freeze"])
	require.True(t, routes["POST /api/v1/admin/card/:user_id/adjust"])
	require.True(t, routes["POST /api/v1/admin/apps"])
	require.True(t, routes["POST /api/v1/admin/payment/sweep"])
	require.True(t, routes["POST /api/v1/admin/quota/reset"])
}
