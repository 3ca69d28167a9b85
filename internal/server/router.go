package server

import (
	"net/http"
	"time"

	"github.com/bernerspace/relay/internal/auth"
	"github.com/bernerspace/relay/internal/dispatch"
	"github.com/bernerspace/relay/internal/flow"
	"github.com/bernerspace/relay/internal/gate"
	"github.com/bernerspace/relay/internal/integration"
	"github.com/bernerspace/relay/internal/server/db"
	"github.com/bernerspace/relay/internal/server/handler"
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the Gin router with all routes.
func NewRouter(store *db.Store, registry *integration.Registry, cfg *Config) *gin.Engine {
	r := gin.Default()

	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORS(cfg.CORSOrigins))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"service":      "relay-gateway",
			"integrations": registry.Names(),
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	verifier := auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience)
	flowCtl := flow.NewController(store, registry, cfg.StateTTL)
	g := gate.New(store, flowCtl)
	disp := dispatch.New(store, registry, g, flowCtl)

	authn := JWTAuth(verifier)

	ig := r.Group("/:integration")
	{
		ig.GET("/oauth/url", authn, handler.HandleOAuthURL(flowCtl))
		ig.GET("/oauth/callback", handler.HandleOAuthCallback(flowCtl))
		ig.GET("/oauth/status", authn, handler.HandleOAuthStatus(store, registry))
		ig.DELETE("/oauth/token", authn, handler.HandleRevokeToken(store, registry))
		ig.POST("/tools/:tool", authn, handler.HandleInvokeTool(disp))
	}

	return r
}
