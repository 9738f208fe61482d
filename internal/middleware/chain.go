package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/apperr"
	"github.com/obsplane/observability/internal/geo"
	"github.com/obsplane/observability/internal/pipeline"
)

// ChainConfig carries the per-process values the ordered pipeline needs.
type ChainConfig struct {
	ConsoleFrontendURL string
	IsProduction       bool
	Version            string
	Environment        string
	GeoLookup          geo.IPLookup
	Coordinator        *pipeline.Coordinator
}

// Install wires the 13-step request pipeline onto engine in the fixed order
// the pipeline's ordering guarantee requires: steps 1-10 run before the
// handler, 11-13 observe its result.
func Install(engine *gin.Engine, cfg ChainConfig) {
	engine.Use(
		RequestID(),                                    // 1
		Favicon(),                                       // 2
		apperr.ErrorHandler(cfg.IsProduction),          // 3 (terminal error surface)
		apperr.Recovery(cfg.IsProduction),
		CORS(cfg.ConsoleFrontendURL),                   // 4
		CSRFProtection(),                                // 5
		LanguageDetect(),                                // 6
		ServerTiming(),                                  // 7
		GeoAttach(cfg.GeoLookup),                        // 8
		BodySizeLimit(),                                 // 9
		SecurityHeaders(cfg.IsProduction),               // 10
		MetricsCapture(cfg.Coordinator),                 // 11
		SnapshotCapture(cfg.Coordinator, cfg.Version, cfg.Environment), // 12
		AccessLog(cfg.Coordinator, cfg.Version, cfg.Environment),       // 13
	)
	engine.NoRoute(NotFound())
}
