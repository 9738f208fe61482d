package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// cloudDistributionSuffixes are hosted-frontend domain suffixes (CDN/static
// site hosting) allowed in addition to the configured console frontend host.
var cloudDistributionSuffixes = []string{".cloudfront.net", ".amplifyapp.com"}

// CORS builds the allow-list described by the pipeline: localhost, the
// request's own origin (same-origin requests always carry a matching
// Origin/Host pair), the configured console frontend, and cloud-distribution
// hosting suffixes.
func CORS(consoleFrontendURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && isAllowedOrigin(origin, c.Request.Host, consoleFrontendURL) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-CSRF-Token, X-Internal-Replay")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func isAllowedOrigin(origin, host, consoleFrontendURL string) bool {
	if isLocalOrigin(origin) {
		return true
	}
	if sameHost(origin, host) {
		return true
	}
	if consoleFrontendURL != "" && strings.TrimSuffix(origin, "/") == strings.TrimSuffix(consoleFrontendURL, "/") {
		return true
	}
	for _, suffix := range cloudDistributionSuffixes {
		if strings.HasSuffix(hostOf(origin), suffix) {
			return true
		}
	}
	return false
}

func isLocalOrigin(origin string) bool {
	h := hostOf(origin)
	return h == "localhost" || h == "127.0.0.1" || strings.HasPrefix(h, "localhost:") || strings.HasPrefix(h, "127.0.0.1:")
}

func sameHost(origin, requestHost string) bool {
	return hostOf(origin) == requestHost
}

func hostOf(origin string) string {
	h := strings.TrimPrefix(origin, "https://")
	h = strings.TrimPrefix(h, "http://")
	return h
}
