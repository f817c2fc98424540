package common

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Patched fields recorded in the audit log.
const (
	FieldChanmap = "chanmap"
	FieldCRC     = "crc"
)

// PatchEntry captures a single in-place modification to a patched stream.
type PatchEntry struct {
	Field     string    `json:"field"`
	Frame     int       `json:"frame"`
	Offset    int64     `json:"offset"`
	BeforeHex string    `json:"beforeHex"`
	AfterHex  string    `json:"afterHex"`
	Ts        time.Time `json:"ts"`
}

// BeforeBytes decodes the bytes present before the patch was applied.
func (p PatchEntry) BeforeBytes() ([]byte, error) {
	if strings.TrimSpace(p.BeforeHex) == "" {
		return nil, nil
	}
	return hex.DecodeString(p.BeforeHex)
}

// AfterBytes decodes the bytes written by the patch.
func (p PatchEntry) AfterBytes() ([]byte, error) {
	if strings.TrimSpace(p.AfterHex) == "" {
		return nil, nil
	}
	return hex.DecodeString(p.AfterHex)
}

// PatchLog provides append-only access to a JSONL audit log.
type PatchLog struct {
	path string
	mu   sync.Mutex
}

// NewPatchLog returns a PatchLog that writes to the provided path.
func NewPatchLog(path string) *PatchLog {
	return &PatchLog{path: path}
}

// Path returns the backing file path for the log.
func (p *PatchLog) Path() string {
	if p == nil {
		return ""
	}
	return p.path
}

// Append writes entries to the audit log, one JSON object per line. The file
// is opened once per call so a whole pass can be flushed together.
func (p *PatchLog) Append(entries ...PatchEntry) error {
	if p == nil {
		return errors.New("nil patch log")
	}
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	dir := filepath.Dir(p.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, entry := range entries {
		if entry.Field == "" {
			return errors.New("patch entry missing field")
		}
		if entry.Ts.IsZero() {
			entry.Ts = now
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadPatchLog loads every entry from the supplied JSONL file.
func ReadPatchLog(path string) ([]PatchEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var entries []PatchEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry PatchEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode patch entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// RevertEntries writes the before-bytes of entries back into buf, newest
// first. It returns how many entries were applied and how many found bytes
// that did not match their recorded after-bytes.
func RevertEntries(buf []byte, entries []PatchEntry) (applied, mismatches int, err error) {
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		before, err := entry.BeforeBytes()
		if err != nil {
			return applied, mismatches, fmt.Errorf("entry %d: decode beforeHex: %w", i, err)
		}
		after, err := entry.AfterBytes()
		if err != nil {
			return applied, mismatches, fmt.Errorf("entry %d: decode afterHex: %w", i, err)
		}
		if entry.Offset < 0 || entry.Offset+int64(len(before)) > int64(len(buf)) {
			return applied, mismatches, fmt.Errorf("entry %d: offset %d out of range", i, entry.Offset)
		}
		off := int(entry.Offset)
		if len(after) != len(before) || off+len(after) > len(buf) || string(buf[off:off+len(after)]) != string(after) {
			mismatches++
		}
		copy(buf[off:], before)
		applied++
	}
	return applied, mismatches, nil
}
