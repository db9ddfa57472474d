package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

func init() {
	// Default logger until Init is called with the configured level
	Logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = Logger
}

// Init initializes the global logger with the specified level and output
func Init(level string, pretty bool) {
	var zlLevel zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		zlLevel = zerolog.DebugLevel
	case "info":
		zlLevel = zerolog.InfoLevel
	case "warn", "warning":
		zlLevel = zerolog.WarnLevel
	case "error":
		zlLevel = zerolog.ErrorLevel
	default:
		zlLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(zlLevel)

	var output io.Writer = os.Stdout
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}
	}

	Logger = zerolog.New(output).
		With().
		Timestamp().
		Logger()

	log.Logger = Logger
}

// Get returns the global logger instance
func Get() *zerolog.Logger {
	return &Logger
}

// WithComponent returns a logger with a component field set
func WithComponent(component string) *zerolog.Logger {
	l := Logger.With().Str("component", component).Logger()
	return &l
}

// WithPipeline returns a logger tagged with a pipeline name
func WithPipeline(name string) *zerolog.Logger {
	l := Logger.With().Str("pipeline", name).Logger()
	return &l
}
