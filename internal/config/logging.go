package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// maxLogSize is the size above which an existing log file is truncated on
// open.
const maxLogSize = 50 * 1024 * 1024

// ConfigureLogging applies a log level and destination to logrus. An empty
// file logs to stderr. "off" and "none" discard everything. The returned
// closer releases the log file, if any.
func ConfigureLogging(level, file string) (io.Closer, error) {
	level = strings.ToLower(level)
	if level == "off" || level == "none" {
		log.SetOutput(io.Discard)
		return io.NopCloser(nil), nil
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	switch level {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	if file == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}

	if err := truncateLogFile(file, maxLogSize); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to truncate log file: %v\n", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return f, nil
}

func truncateLogFile(path string, limit int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() <= limit {
		return nil
	}
	return os.Truncate(path, 0)
}
