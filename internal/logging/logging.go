package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Backend hands out per-subsystem loggers backed by a rotated log file.
// Stdout carries the wire protocol, so log output never goes there.
type Backend struct {
	logRotator      *rotator.Rotator
	bknd            *slog.Backend
	defaultLogLevel slog.Level
	logLevels       map[string]slog.Level

	loggersMtx sync.Mutex
	loggers    map[string]slog.Logger
}

// NewBackend creates a log backend writing to logFile, rotating past 1 MB
// and keeping maxLogFiles rolled files. An empty logFile disables file
// output entirely. debugLevel is either a bare level ("debug") applied to
// every subsystem or a comma-separated subsys=level list ("info,STOR=trace").
func NewBackend(logFile, debugLevel string, maxLogFiles int) (*Backend, error) {
	var logRotator *rotator.Rotator
	if logFile != "" {
		logDir, _ := filepath.Split(logFile)
		err := os.MkdirAll(logDir, 0700)
		if err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logRotator, err = rotator.New(logFile, 1024, false, maxLogFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %w", err)
		}
	}

	b := &Backend{
		logRotator:      logRotator,
		defaultLogLevel: slog.LevelInfo,
		logLevels:       make(map[string]slog.Level),
		loggers:         make(map[string]slog.Logger),
	}
	b.bknd = slog.NewBackend(b)

	if err := b.SetDebugLevel(debugLevel); err != nil {
		return nil, err
	}

	return b, nil
}

// Write implements io.Writer for the slog backend.
func (b *Backend) Write(p []byte) (int, error) {
	if b.logRotator != nil {
		return b.logRotator.Write(p)
	}
	return len(p), nil
}

// Logger returns the logger for the given subsystem tag, creating it with
// the configured level on first use.
func (b *Backend) Logger(subsys string) slog.Logger {
	b.loggersMtx.Lock()
	defer b.loggersMtx.Unlock()

	if l, ok := b.loggers[subsys]; ok {
		return l
	}

	l := b.bknd.Logger(subsys)
	b.loggers[subsys] = l
	if level, ok := b.logLevels[subsys]; ok {
		l.SetLevel(level)
	} else {
		l.SetLevel(b.defaultLogLevel)
	}

	return l
}

// SetDebugLevel reparses a debug level string and applies it to existing and
// future loggers.
func (b *Backend) SetDebugLevel(s string) error {
	if s == "" {
		return nil
	}

	b.loggersMtx.Lock()
	defer b.loggersMtx.Unlock()

	for _, v := range strings.Split(s, ",") {
		fields := strings.Split(v, "=")
		if len(fields) == 1 {
			level, ok := slog.LevelFromString(fields[0])
			if !ok {
				return fmt.Errorf("unknown log level %q", fields[0])
			}
			b.defaultLogLevel = level
			for subsys, l := range b.loggers {
				if _, pinned := b.logLevels[subsys]; !pinned {
					l.SetLevel(level)
				}
			}
		} else if len(fields) == 2 {
			subsys := fields[0]
			level, ok := slog.LevelFromString(fields[1])
			if !ok {
				return fmt.Errorf("unknown log level %q", fields[1])
			}
			b.logLevels[subsys] = level
			if l, ok := b.loggers[subsys]; ok {
				l.SetLevel(level)
			}
		} else {
			return fmt.Errorf("unable to parse %q as subsys=level "+
				"debuglevel string", v)
		}
	}

	return nil
}

// Close flushes and closes the underlying log file.
func (b *Backend) Close() error {
	if b.logRotator != nil {
		return b.logRotator.Close()
	}
	return nil
}
