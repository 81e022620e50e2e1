// Package common provides shared utilities for Sift
package common

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// Logger wraps arbor.ILogger to provide a consistent interface
type Logger struct {
	arbor.ILogger
}

func consoleWriter() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		TextOutput:       true,
		DisableTimestamp: false,
	}
}

// NewLogger creates a console logger with the specified level
func NewLogger(level string) *Logger {
	logger := arbor.NewLogger().
		WithConsoleWriter(consoleWriter()).
		WithLevelFromString(normalizeLevel(level))
	return &Logger{ILogger: logger}
}

// NewLoggerFromConfig creates a logger with the writers named in the logging config.
// Unknown outputs are ignored; an empty output list falls back to the console.
func NewLoggerFromConfig(cfg LoggingConfig) *Logger {
	logger := arbor.NewLogger()

	console := len(cfg.Outputs) == 0
	for _, output := range cfg.Outputs {
		switch strings.ToLower(output) {
		case "console", "stdout":
			console = true
		case "file":
			path := cfg.FilePath
			if path == "" {
				path = "./logs/sift.log"
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				console = true
				continue
			}
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:             models.LogWriterTypeFile,
				FileName:         path,
				TimeFormat:       "15:04:05",
				MaxSize:          100 * 1024 * 1024, // 100 MB
				MaxBackups:       3,
				TextOutput:       cfg.Format != "json",
				DisableTimestamp: false,
			})
		}
	}
	if console {
		logger = logger.WithConsoleWriter(consoleWriter())
	}

	return &Logger{ILogger: logger.WithLevelFromString(normalizeLevel(cfg.Level))}
}

// NewDefaultLogger creates a logger with default settings
func NewDefaultLogger() *Logger {
	return NewLogger("info")
}

// NewSilentLogger creates a logger that discards all output
func NewSilentLogger() *Logger {
	return &Logger{ILogger: arbor.NewNoOpLogger()}
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return "debug"
	case "warn", "warning":
		return "warn"
	case "error":
		return "error"
	default:
		return "info"
	}
}
