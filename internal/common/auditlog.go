package common

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditEntry captures a single mutation of the trace archive.
type AuditEntry struct {
	Ts     time.Time `json:"ts"`
	Action string    `json:"action"`
	Hash   string    `json:"hash,omitempty"`
	File   string    `json:"file,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// AuditLog provides append-only access to a JSONL audit log.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

// NewAuditLog returns an AuditLog that writes to the provided path.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Path returns the backing file path for the log.
func (l *AuditLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a new entry to the audit log. Entries are serialized as
// JSON objects, one per line, to make downstream consumption and replay
// straightforward.
func (l *AuditLog) Append(entry AuditEntry) error {
	if l == nil {
		return errors.New("nil audit log")
	}
	if entry.Action == "" {
		return errors.New("audit entry missing action")
	}
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	dir := filepath.Dir(l.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// ReadAuditLog loads every entry from the supplied JSONL file.
func ReadAuditLog(path string) ([]AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var entries []AuditEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry AuditEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
