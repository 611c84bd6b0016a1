// Package utils provides the RFC 5424 logger and small formatting helpers
// shared by Porsha's analysis components.
//
//nolint:revive // utils is a common pattern for internal utilities
package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

// Logger defines the interface for logging operations.
type Logger interface {
	LogInfo(message string, meta map[string]string)
	LogWarn(message string, meta map[string]string)
	LogError(message string, meta map[string]string)
	LogDebug(message string, meta map[string]string)
}

// RFC5424Logger implements Logger with RFC 5424 compliant syslog output.
// Emitted lines are also buffered in memory so the session report exporter
// can include them.
type RFC5424Logger struct {
	appName   string
	hostname  string
	processID string
	facility  rfc5424.Priority
	minRank   int
	mu        sync.Mutex
	logs      []string
}

// severityRank orders severities from most to least verbose. Lower rank
// means more verbose.
func severityRank(severity rfc5424.Priority) int {
	switch severity {
	case rfc5424.Debug:
		return 0
	case rfc5424.Info:
		return 1
	case rfc5424.Warning:
		return 2
	default:
		return 3
	}
}

// ParseSeverity maps a config level name to an RFC 5424 severity. Unknown
// names fall back to Info.
func ParseSeverity(level string) rfc5424.Priority {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return rfc5424.Debug
	case "warn", "warning":
		return rfc5424.Warning
	case "error":
		return rfc5424.Error
	default:
		return rfc5424.Info
	}
}

// NewRFC5424Logger creates a logger that suppresses messages below minSeverity.
func NewRFC5424Logger(appName string, minSeverity rfc5424.Priority) *RFC5424Logger {
	return &RFC5424Logger{
		appName:   appName,
		hostname:  getHostname(),
		processID: strconv.Itoa(os.Getpid()),
		facility:  rfc5424.User,
		minRank:   severityRank(minSeverity),
		logs:      make([]string, 0),
	}
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return hostname
}

func (l *RFC5424Logger) createMessage(severity rfc5424.Priority, message string, meta map[string]string) *rfc5424.Message {
	msg := &rfc5424.Message{
		Priority:  l.facility | severity,
		Timestamp: time.Now().UTC(),
		Hostname:  l.hostname,
		AppName:   l.appName,
		ProcessID: l.processID,
		Message:   []byte(message),
	}
	for key, value := range meta {
		msg.AddDatum("meta@1", key, value)
	}
	return msg
}

func (l *RFC5424Logger) writeLog(severity rfc5424.Priority, message string, meta map[string]string) {
	if severityRank(severity) < l.minRank {
		return
	}
	msg := l.createMessage(severity, message, meta)
	if _, err := msg.WriteTo(os.Stderr); err == nil {
		fmt.Fprintln(os.Stderr)
	} else {
		fmt.Fprintf(os.Stderr, "<%d>1 %s %s %s %s - - %s\n",
			int(l.facility|severity),
			msg.Timestamp.Format(time.RFC3339),
			l.hostname, l.appName, l.processID, message)
	}

	formatted := fmt.Sprintf("<%d>1 %s %s %s %s - - %s",
		int(l.facility|severity),
		msg.Timestamp.Format(time.RFC3339),
		l.hostname, l.appName, l.processID, message)
	l.mu.Lock()
	l.logs = append(l.logs, formatted)
	l.mu.Unlock()
}

// LogInfo logs an informational message.
func (l *RFC5424Logger) LogInfo(message string, meta map[string]string) {
	l.writeLog(rfc5424.Info, message, meta)
}

// LogWarn logs a warning message.
func (l *RFC5424Logger) LogWarn(message string, meta map[string]string) {
	l.writeLog(rfc5424.Warning, message, meta)
}

// LogError logs an error message.
func (l *RFC5424Logger) LogError(message string, meta map[string]string) {
	l.writeLog(rfc5424.Error, message, meta)
}

// LogDebug logs a debug message.
func (l *RFC5424Logger) LogDebug(message string, meta map[string]string) {
	l.writeLog(rfc5424.Debug, message, meta)
}

// GetLogs returns a copy of all captured log lines.
func (l *RFC5424Logger) GetLogs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	logsCopy := make([]string, len(l.logs))
	copy(logsCopy, l.logs)
	return logsCopy
}

// ClearLogs clears the in-memory log buffer.
func (l *RFC5424Logger) ClearLogs() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = l.logs[:0]
}

// DefaultLogger is the global logger instance.
var DefaultLogger *RFC5424Logger

// InitDefaultLogger initializes the global logger with the given level name.
func InitDefaultLogger(level string) {
	DefaultLogger = NewRFC5424Logger("porsha", ParseSeverity(level))
}

// Convenience functions using the global logger.

// LogInfo logs an informational message using the default logger.
func LogInfo(message string, meta map[string]string) {
	if DefaultLogger != nil {
		DefaultLogger.LogInfo(message, meta)
	}
}

// LogWarn logs a warning message using the default logger.
func LogWarn(message string, meta map[string]string) {
	if DefaultLogger != nil {
		DefaultLogger.LogWarn(message, meta)
	}
}

// LogError logs an error message using the default logger.
func LogError(message string, meta map[string]string) {
	if DefaultLogger != nil {
		DefaultLogger.LogError(message, meta)
	}
}

// LogDebug logs a debug message using the default logger.
func LogDebug(message string, meta map[string]string) {
	if DefaultLogger != nil {
		DefaultLogger.LogDebug(message, meta)
	}
}

// GetLogs returns captured log lines from the default logger.
func GetLogs() []string {
	if DefaultLogger != nil {
		return DefaultLogger.GetLogs()
	}
	return []string{}
}
