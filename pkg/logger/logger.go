package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/crownlabs/academy-idp/pkg/logaction"
)

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

type LogType string

const (
	TypeDetail  LogType = "detail"
	TypeSummary LogType = "summary"
)

type DetailLog struct {
	Timestamp         string         `json:"timestamp"`
	Level             LogLevel       `json:"level"`
	Type              LogType        `json:"type"`
	Service           string         `json:"service"`
	Version           string         `json:"version,omitempty"`
	TransactionID     string         `json:"transactionId,omitempty"`
	SessionID         string         `json:"sessionId,omitempty"`
	Action            string         `json:"action,omitempty"`
	ActionDescription string         `json:"actionDescription,omitempty"`
	Message           string         `json:"message,omitempty"`
	Dependency        string         `json:"dependency,omitempty"`
	ResponseTime      int64          `json:"responseTime,omitempty"`
	Duration          int64          `json:"duration,omitempty"`
	StatusCode        int            `json:"statusCode,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

type LogOutputConfig struct {
	Path    string
	Console bool
	File    bool
}

type LoggerConfig struct {
	Summary LogOutputConfig
	Detail  LogOutputConfig
}

// DependencyMetadata tags the next detail entry with the downstream system it
// talks to and how long the call took.
type DependencyMetadata struct {
	Dependency   string
	ResponseTime int64
}

// Logger writes detail entries as they happen plus one summary entry flushed
// at the end of the transaction. It is request-scoped and not safe for
// concurrent use.
type Logger struct {
	service       string
	version       string
	config        *LoggerConfig
	transactionID string
	sessionID     string
	startTime     time.Time
	metadata      map[string]any
	pendingDep    *DependencyMetadata
}

func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Summary: LogOutputConfig{Path: "./logs/summary/", Console: true, File: false},
		Detail:  LogOutputConfig{Path: "./logs/detail/", Console: true, File: false},
	}
}

func NewLogger(service, version string) *Logger {
	return NewLoggerWithConfig(service, version, DefaultConfig())
}

func NewLoggerWithConfig(service, version string, config *LoggerConfig) *Logger {
	return &Logger{
		service:   service,
		version:   version,
		config:    config,
		startTime: time.Now(),
		metadata:  make(map[string]any),
	}
}

func (l *Logger) SetSessionID(sessionID string) {
	l.sessionID = sessionID
}

// StartTransaction resets per-request state and stamps the transaction ids.
func (l *Logger) StartTransaction(transactionID, sessionID string) {
	l.transactionID = transactionID
	l.sessionID = sessionID
	l.startTime = time.Now()
	l.metadata = make(map[string]any)
}

// SetDependencyMetadata attaches dependency info to the next detail entry.
func (l *Logger) SetDependencyMetadata(dep DependencyMetadata) *Logger {
	l.pendingDep = &dep
	return l
}

func (l *Logger) AddMetadata(key string, value any) {
	l.metadata[key] = value
}

func (l *Logger) Debug(action logaction.LoggerAction, data any, maskingRules ...MaskingRule) {
	l.detail(LevelDebug, action, data, maskingRules...)
}

func (l *Logger) Info(action logaction.LoggerAction, data any, maskingRules ...MaskingRule) {
	l.detail(LevelInfo, action, data, maskingRules...)
}

func (l *Logger) Warn(action logaction.LoggerAction, data any, maskingRules ...MaskingRule) {
	l.detail(LevelWarn, action, data, maskingRules...)
}

func (l *Logger) Error(action logaction.LoggerAction, data any, maskingRules ...MaskingRule) {
	l.detail(LevelError, action, data, maskingRules...)
}

func (l *Logger) detail(level LogLevel, action logaction.LoggerAction, data any, maskingRules ...MaskingRule) {
	masked := data
	if len(maskingRules) > 0 {
		masked = MaskData(data, maskingRules)
	}

	entry := DetailLog{
		Level:             level,
		Type:              TypeDetail,
		Action:            action.Action,
		ActionDescription: action.Description,
		Message:           dataToString(masked),
		TransactionID:     l.transactionID,
		SessionID:         l.sessionID,
	}
	if l.pendingDep != nil {
		entry.Dependency = l.pendingDep.Dependency
		entry.ResponseTime = l.pendingDep.ResponseTime
		l.pendingDep = nil
	}

	l.write(entry)
}

// Flush writes the transaction summary and resets accumulated state.
func (l *Logger) Flush(statusCode int, message string) {
	l.flush(LevelInfo, statusCode, message)
}

func (l *Logger) FlushError(statusCode int, message string) {
	l.flush(LevelError, statusCode, message)
}

func (l *Logger) flush(level LogLevel, statusCode int, message string) {
	l.write(DetailLog{
		Level:         level,
		Type:          TypeSummary,
		Message:       message,
		TransactionID: l.transactionID,
		SessionID:     l.sessionID,
		StatusCode:    statusCode,
		Duration:      time.Since(l.startTime).Milliseconds(),
		Metadata:      l.metadata,
	})
	l.metadata = make(map[string]any)
	l.startTime = time.Now()
}

func (l *Logger) write(entry DetailLog) {
	entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	entry.Service = l.service
	entry.Version = l.version

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line = append(line, '\n')

	out := l.config.Detail
	if entry.Type == TypeSummary {
		out = l.config.Summary
	}

	if out.Console {
		os.Stdout.Write(line)
	}
	if out.File {
		l.writeToFile(out.Path, entry.Timestamp, line)
	}
}

func (l *Logger) writeToFile(basePath, timestamp string, data []byte) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return
	}

	// one file per day, named by the date part of the timestamp
	filename := filepath.Join(basePath, timestamp[:10]+".log")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	f.Write(data)
}

func dataToString(data any) string {
	if data == nil {
		return ""
	}
	if s, ok := data.(string); ok {
		return s
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(b)
}
