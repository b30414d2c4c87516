package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"crowdwatch/internal/config"

	clog "github.com/charmbracelet/log"
)

const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	infoLog    *clog.Logger
	warningLog *clog.Logger
	errorLog   *clog.Logger
	access     io.Writer
	files      []*os.File
	logDir     string
	mu         sync.Mutex
}

// NewLogger creates a Logger writing into the configured log directory.
func NewLogger(cfg *config.Config) (*Logger, error) {
	return New(cfg.LogDirectory, cfg.LogLevel, os.Stdout, os.Stderr)
}

// New creates the log directory and one file per level inside it. Info and
// warning entries are mirrored to stdout, errors to stderr.
func New(logDir, level string, stdout, stderr io.Writer) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	level = strings.ToLower(level)
	if level == "warning" {
		level = "warn"
	}
	lvl, err := clog.ParseLevel(level)
	if err != nil {
		lvl = clog.InfoLevel
	}

	l := &Logger{logDir: logDir}

	infoFile, err := l.openLogFile(InfoFile)
	if err != nil {
		return nil, err
	}
	warningFile, err := l.openLogFile(WarningFile)
	if err != nil {
		l.Close()
		return nil, err
	}
	errorFile, err := l.openLogFile(ErrorFile)
	if err != nil {
		l.Close()
		return nil, err
	}

	l.access = io.MultiWriter(stdout, infoFile)
	l.infoLog = newLevelLogger(io.MultiWriter(stdout, infoFile), "INFO", lvl)
	l.warningLog = newLevelLogger(io.MultiWriter(stdout, warningFile), "WARNING", lvl)
	l.errorLog = newLevelLogger(io.MultiWriter(stderr, errorFile), "ERROR", lvl)
	return l, nil
}

// Discard returns a Logger that drops everything. Used by tests and tools
// that have no log directory.
func Discard() *Logger {
	return &Logger{
		access:     io.Discard,
		infoLog:    newLevelLogger(io.Discard, "INFO", clog.InfoLevel),
		warningLog: newLevelLogger(io.Discard, "WARNING", clog.InfoLevel),
		errorLog:   newLevelLogger(io.Discard, "ERROR", clog.InfoLevel),
	}
}

func newLevelLogger(w io.Writer, prefix string, level clog.Level) *clog.Logger {
	return clog.NewWithOptions(w, clog.Options{
		Prefix:          prefix,
		Level:           level,
		ReportTimestamp: true,
		ReportCaller:    true,
		CallerOffset:    1,
	})
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) (*os.File, error) {
	file, err := os.OpenFile(filepath.Join(l.logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.infoLog.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.warningLog.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.errorLog.Errorf(format, v...)
}

// AccessWriter is where HTTP access lines go.
func (l *Logger) AccessWriter() io.Writer {
	return l.access
}

// Directory returns the directory holding the log files.
func (l *Logger) Directory() string {
	return l.logDir
}

// CleanLogs truncates one of the level files.
func (l *Logger) CleanLogs(fileName string) error {
	switch fileName {
	case InfoFile, WarningFile, ErrorFile:
	default:
		return fmt.Errorf("unknown log file %q", fileName)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Truncate(filepath.Join(l.logDir, fileName), 0); err != nil {
		l.Error("Failed to clear %s: %v", fileName, err)
		return err
	}
	l.Info("%s has been cleared", fileName)
	return nil
}

// Close releases the log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
