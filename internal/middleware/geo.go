package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/obsplane/observability/internal/geo"
	"github.com/obsplane/observability/internal/models"
)

const geoKey = "geo"

// GeoAttach resolves the platform/header/IP geo chain and stores the result
// on the request context for the snapshot/access-log stages to read.
func GeoAttach(lookup geo.IPLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(geoKey, geo.Resolve(c, lookup))
		c.Next()
	}
}

// Geo reads the geo attached by GeoAttach.
func Geo(c *gin.Context) models.Geo {
	if v, ok := c.Get(geoKey); ok {
		if g, ok := v.(models.Geo); ok {
			return g
		}
	}
	return models.Geo{Source: models.GeoSourceNone}
}
