package handler

import "github.com/gin-gonic/gin"

// CallerIDKey is where the auth middleware stores the verified caller id.
const CallerIDKey = "relay.caller_id"

// CallerID returns the verified caller id set by the auth middleware, or ""
// on an unauthenticated route.
func CallerID(c *gin.Context) string {
	v, ok := c.Get(CallerIDKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
