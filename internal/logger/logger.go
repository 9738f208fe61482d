package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Global logger instance
var (
	Log zerolog.Logger
)

// Initialize sets up the global logger with configuration
func Initialize(level string, pretty bool) {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Configure output format
	if pretty {
		// Pretty console output for development
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	// Set global logger
	Log = log.With().
		Str("service", "observability-plane").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("Logger initialized")
}

// GetLogger returns the global logger instance
func GetLogger() *zerolog.Logger {
	return &Log
}

func component(name string) *zerolog.Logger {
	l := Log.With().Str("component", name).Logger()
	return &l
}

// Pipeline creates a logger for request-pipeline middleware events
func Pipeline() *zerolog.Logger { return component("pipeline") }

// Gateway creates a logger for persistence-gateway events
func Gateway() *zerolog.Logger { return component("gateway") }

// Jobs creates a logger for job-fabric enqueue/dispatch/retry events
func Jobs() *zerolog.Logger { return component("jobs") }

// Aggregator creates a logger for metric-aggregator events
func Aggregator() *zerolog.Logger { return component("aggregator") }

// Maintenance creates a logger for cleanup/heartbeat/replay loop events
func Maintenance() *zerolog.Logger { return component("maintenance") }

// Replay creates a logger for the replay executor
func Replay() *zerolog.Logger { return component("replay") }

// HTTP creates a logger for HTTP request events
func HTTP() *zerolog.Logger { return component("http") }
