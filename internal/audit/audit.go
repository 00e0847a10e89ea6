// Package audit writes append-only, line-delimited structured records.
// Writes are best-effort: a failure to append is reported to the console
// stream and never surfaced to the caller.
package audit

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"memberhub-api/pkg/uid"
)

// Severities for audit records.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Record is one audit log line.
type Record struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"ts"`
	Severity  string            `json:"severity"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Logger appends JSON records to a file, one per line.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (or creates) the audit log at path in append mode.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return &Logger{file: f}, nil
}

// Event appends one record. Never returns an error: append failures fall
// back to the console stream so the caller's response is never blocked.
func (l *Logger) Event(severity, message string, fields map[string]string) {
	rec := Record{
		ID:        uid.New(),
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		Message:   message,
		Fields:    fields,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[Audit] Failed to encode record %q: %v", message, err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		log.Printf("[Audit] Failed to append record %q: %v", message, err)
	}
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
