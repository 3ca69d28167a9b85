package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/bernerspace/relay/internal/flow"
	"github.com/bernerspace/relay/internal/integration"
	"github.com/bernerspace/relay/internal/logx"
	"github.com/bernerspace/relay/internal/server/db"
	"github.com/gin-gonic/gin"
)

// HandleOAuthURL handles GET /:integration/oauth/url.
func HandleOAuthURL(flowCtl *flow.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		integrationName := c.Param("integration")

		begin, err := flowCtl.Begin(c.Request.Context(), CallerID(c), integrationName)
		if err != nil {
			if errors.Is(err, integration.ErrUnknownIntegration) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown integration"})
				return
			}
			logx.Errorf("begin authorization: integration=%s err=%v", integrationName, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start authorization"})
			return
		}

		c.JSON(http.StatusOK, begin)
	}
}

// HandleOAuthCallback handles GET /:integration/oauth/callback. This is the
// provider-facing endpoint: it carries no bearer token, the state token alone
// correlates the callback to the caller who initiated the flow.
func HandleOAuthCallback(flowCtl *flow.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		integrationName := c.Param("integration")

		if errParam := c.Query("error"); errParam != "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "OAuth authorization failed: " + errParam,
				"message": "Please try the OAuth flow again",
			})
			return
		}

		code := c.Query("code")
		state := c.Query("state")
		if code == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "No authorization code received",
				"message": "OAuth callback missing required code parameter",
			})
			return
		}
		if state == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "No state received",
				"message": "OAuth callback missing required state parameter",
			})
			return
		}

		callerID, err := flowCtl.Complete(c.Request.Context(), integrationName, code, state)
		if err != nil {
			var exErr *flow.TokenExchangeError
			switch {
			case errors.Is(err, flow.ErrInvalidOrExpiredState):
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "invalid or expired OAuth state",
					"message": "Please try the OAuth flow again",
				})
			case errors.As(err, &exErr):
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "OAuth token exchange failed: " + exErr.Detail,
					"message": "Please try the OAuth flow again",
				})
			case errors.Is(err, integration.ErrUnknownIntegration):
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown integration"})
			default:
				logx.Errorf("complete authorization: integration=%s err=%v", integrationName, err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   "OAuth callback failed",
					"message": "Please try the OAuth flow again",
				})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"message":     "Successfully authorized! You can now use " + integrationName + " tools.",
			"client_id":   callerID,
			"integration": integrationName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// HandleOAuthStatus handles GET /:integration/oauth/status.
func HandleOAuthStatus(store *db.Store, registry *integration.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		integrationName := c.Param("integration")
		if _, err := registry.Describe(integrationName); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown integration"})
			return
		}

		cred, err := store.GetToken(CallerID(c), integrationName)
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"authorized": false, "integration": integrationName})
			return
		}
		if err != nil {
			logx.Errorf("oauth status: integration=%s err=%v", integrationName, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read credential"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"authorized":  true,
			"integration": integrationName,
			"stored_at":   cred.StoredAt,
		})
	}
}

// HandleRevokeToken handles DELETE /:integration/oauth/token. Deleting an
// absent credential succeeds: revocation is idempotent.
func HandleRevokeToken(store *db.Store, registry *integration.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		integrationName := c.Param("integration")
		if _, err := registry.Describe(integrationName); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown integration"})
			return
		}

		if err := store.DeleteToken(CallerID(c), integrationName); err != nil {
			logx.Errorf("revoke token: integration=%s err=%v", integrationName, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete credential"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "revoked", "integration": integrationName})
	}
}
