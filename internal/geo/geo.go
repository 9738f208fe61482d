// Package geo resolves the coarse geographic attribution attached to every
// captured request by the Geo pipeline step: platform-provided hints first,
// then an x-forwarded-for lookup, then none.
package geo

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/models"
)

// platformHeaders are set by common edge/CDN platforms ahead of this
// process; when present they are authoritative and skip any IP lookup.
var platformHeaders = []string{"x-vercel-ip-country", "cf-ipcountry"}

// Resolve derives a Geo value for the inbound request.
func Resolve(c *gin.Context, lookup IPLookup) models.Geo {
	if country := firstPlatformHint(c); country != "" {
		return models.Geo{Country: country, Source: models.GeoSourcePlatform}
	}

	if g, ok := headerGeo(c); ok {
		return g
	}

	ip := clientIP(c)
	if ip != "" && lookup != nil {
		if g, ok := lookup.Lookup(ip); ok {
			g.Source = models.GeoSourceIP
			return g
		}
	}

	return models.Geo{Source: models.GeoSourceNone}
}

func firstPlatformHint(c *gin.Context) string {
	for _, h := range platformHeaders {
		if v := c.GetHeader(h); v != "" {
			return strings.ToUpper(v)
		}
	}
	return ""
}

// headerGeo reads an explicit x-geo-* header set, useful in tests and behind
// trusted internal proxies that already resolved geo themselves.
func headerGeo(c *gin.Context) (models.Geo, bool) {
	country := c.GetHeader("x-geo-country")
	if country == "" {
		return models.Geo{}, false
	}
	return models.Geo{
		Country: country,
		Region:  c.GetHeader("x-geo-region"),
		City:    c.GetHeader("x-geo-city"),
		Source:  models.GeoSourceHeader,
	}, true
}

func clientIP(c *gin.Context) string {
	xff := c.GetHeader("x-forwarded-for")
	if xff == "" {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			return c.Request.RemoteAddr
		}
		return host
	}
	parts := strings.Split(xff, ",")
	return strings.TrimSpace(parts[0])
}

// IPLookup resolves an IP address to coarse geo attributes. Production
// deployments may back this with a MaxMind-style database; tests use a fake.
type IPLookup interface {
	Lookup(ip string) (models.Geo, bool)
}

// NoopLookup never resolves anything, used when no IP database is configured.
type NoopLookup struct{}

func (NoopLookup) Lookup(string) (models.Geo, bool) { return models.Geo{}, false }
