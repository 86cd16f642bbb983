package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

var (
	globalLogger arbor.ILogger
	loggerMu     sync.Mutex
)

// GetLogger returns the process-wide logger. Before InitLogger runs it
// falls back to a console-only logger so early startup code can log.
func GetLogger() arbor.ILogger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(consoleWriter())
	}
	return globalLogger
}

// InitLogger builds the logger from config and installs it globally.
func InitLogger(config *Config) arbor.ILogger {
	logger := arbor.NewLogger()

	for _, output := range config.Logging.Output {
		switch output {
		case "stdout", "console":
			logger = logger.WithConsoleWriter(consoleWriter())
		case "file":
			fw, err := fileWriter()
			if err != nil {
				fmt.Printf("Warning: file logging disabled: %v\n", err)
				continue
			}
			logger = logger.WithFileWriter(fw)
		}
	}

	logger = logger.WithLevelFromString(config.Logging.Level)

	loggerMu.Lock()
	globalLogger = logger
	loggerMu.Unlock()
	return logger
}

func consoleWriter() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
		TextOutput: true,
	}
}

// fileWriter logs next to the binary under logs/, rotating at 100 MB.
func fileWriter() (models.WriterConfiguration, error) {
	execPath, err := os.Executable()
	if err != nil {
		return models.WriterConfiguration{}, fmt.Errorf("resolve executable path: %w", err)
	}
	logsDir := filepath.Join(filepath.Dir(execPath), "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return models.WriterConfiguration{}, fmt.Errorf("create logs directory: %w", err)
	}
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeFile,
		FileName:   filepath.Join(logsDir, "facet.log"),
		TimeFormat: "15:04:05",
		MaxSize:    100 * 1024 * 1024,
		MaxBackups: 3,
		TextOutput: true,
	}, nil
}
