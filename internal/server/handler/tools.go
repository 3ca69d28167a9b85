package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/bernerspace/relay/internal/dispatch"
	"github.com/bernerspace/relay/internal/integration"
	"github.com/bernerspace/relay/internal/logx"
	"github.com/gin-gonic/gin"
)

// HandleInvokeTool handles POST /:integration/tools/:tool.
func HandleInvokeTool(d *dispatch.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		integrationName := c.Param("integration")
		tool := c.Param("tool")

		args := map[string]any{}
		if err := c.ShouldBindJSON(&args); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tool arguments: " + err.Error()})
			return
		}

		result, err := d.Invoke(c.Request.Context(), CallerID(c), integrationName, tool, args)
		if err != nil {
			var provErr *integration.ProviderError
			switch {
			case errors.Is(err, integration.ErrUnknownIntegration):
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown integration"})
			case errors.Is(err, integration.ErrUnknownTool):
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool: " + tool})
			case errors.As(err, &provErr):
				// The credential exists but the provider rejected the call
				// (revoked/expired token, downstream outage). Distinct from
				// requires_auth so callers can tell the two apart.
				c.JSON(http.StatusBadGateway, gin.H{"error": provErr.Error()})
			default:
				logx.Errorf("invoke tool: integration=%s tool=%s err=%v", integrationName, tool, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "tool invocation failed"})
			}
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
