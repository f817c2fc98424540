// Package pipeline runs the E-AC3 patcher against files on disk.
package pipeline

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"example.com/eac3fix/internal/common"
	"example.com/eac3fix/internal/eac3"
	"example.com/eac3fix/internal/report"
)

// ErrOutputIsInput is returned when the output or audit path would overwrite
// the input file.
var ErrOutputIsInput = errors.New("output path is the input file")

// FileOptions configures PatchFile.
type FileOptions struct {
	// Output overrides the derived output path.
	Output string
	// OutputDir places the derived output file in another directory.
	OutputDir string
	// Suffix replaces the input extension when deriving the output path.
	Suffix string
	// AuditPath enables the JSONL audit log when non-empty.
	AuditPath string
	Notifier  eac3.Notifier
	Metrics   *common.Metrics
}

// ResolveOutput returns the output path PatchFile will use for input.
func (o FileOptions) ResolveOutput(input string) string {
	if o.Output != "" {
		return o.Output
	}
	out := eac3.OutputPath(input, o.Suffix)
	if o.OutputDir != "" {
		out = filepath.Join(o.OutputDir, filepath.Base(out))
	}
	return out
}

// PatchFile reads input, patches it and writes the result. On ErrNoSync no
// output is written. Non-fatal stops still write the output and are
// reflected in the returned summary. The input file is never written.
func PatchFile(input string, opts FileOptions) (report.Summary, error) {
	started := time.Now()
	sum := report.Summary{Input: input, Chanmap: fmt.Sprintf("0x%04X", eac3.FixedChanmap)}

	out := opts.ResolveOutput(input)
	if sameFile(input, out) {
		return sum, fmt.Errorf("%s: %w", out, ErrOutputIsInput)
	}
	if opts.AuditPath != "" && (sameFile(input, opts.AuditPath) || sameFile(out, opts.AuditPath)) {
		return sum, fmt.Errorf("audit log %s collides with input or output", opts.AuditPath)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return sum, err
	}
	sum.InputBytes = int64(len(data))
	sum.InputSHA256 = common.Sha256Hex(data)
	if opts.Metrics != nil {
		opts.Metrics.AddFile(int64(len(data)))
	}

	p := eac3.NewPatcher(eac3.Options{
		Notifier:    opts.Notifier,
		Metrics:     opts.Metrics,
		RecordEdits: opts.AuditPath != "",
	})
	res, err := p.Patch(data)
	if err != nil {
		return sum, err
	}

	if err := common.WriteFileAtomic(out, res.Data, 0o644); err != nil {
		return sum, fmt.Errorf("write output: %w", err)
	}
	if opts.AuditPath != "" {
		if err := writeAudit(opts.AuditPath, res.Edits); err != nil {
			return sum, fmt.Errorf("write audit: %w", err)
		}
		sum.AuditLog = opts.AuditPath
	}

	sum.Output = out
	sum.OutputBytes = int64(len(res.Data))
	sum.OutputSHA256 = common.Sha256Hex(res.Data)
	sum.Frames = res.Frames
	sum.Trimmed = res.Trimmed
	sum.Resyncs = res.Resyncs
	sum.Stop = res.Stop.String()
	if res.Stop != eac3.StopEnd {
		sum.StopOffset = res.StopOffset
	}
	sum.Duration = time.Since(started)
	sum.CreatedAt = time.Now().UTC()
	return sum, nil
}

// sameFile reports whether a and b name the same file, either lexically or,
// when both exist, on disk.
func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	infoA, err := os.Stat(a)
	if err != nil {
		return false
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}

// AuditEntries converts recorded frame edits into audit log entries. Offsets
// are relative to the patched output.
func AuditEntries(edits []eac3.FrameEdit) []common.PatchEntry {
	entries := make([]common.PatchEntry, 0, 2*len(edits))
	for _, e := range edits {
		if len(e.HeaderBefore) > 0 {
			entries = append(entries, common.PatchEntry{
				Field:     common.FieldChanmap,
				Frame:     e.Index,
				Offset:    int64(e.HeaderOffset),
				BeforeHex: hex.EncodeToString(e.HeaderBefore),
				AfterHex:  hex.EncodeToString(e.HeaderAfter),
			})
		}
		if len(e.CRCBefore) > 0 {
			entries = append(entries, common.PatchEntry{
				Field:     common.FieldCRC,
				Frame:     e.Index,
				Offset:    int64(e.CRCOffset),
				BeforeHex: hex.EncodeToString(e.CRCBefore),
				AfterHex:  hex.EncodeToString(e.CRCAfter),
			})
		}
	}
	return entries
}

func writeAudit(path string, edits []eac3.FrameEdit) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return common.NewPatchLog(path).Append(AuditEntries(edits)...)
}

// RestoreFile reverts the edits recorded in auditPath from the patched file
// and writes the result to out. Bytes trimmed ahead of the first syncword
// are not part of the patched file and cannot be restored.
func RestoreFile(patched, auditPath, out string) (applied, mismatches int, err error) {
	entries, err := common.ReadPatchLog(auditPath)
	if err != nil {
		return 0, 0, fmt.Errorf("read audit: %w", err)
	}
	if len(entries) == 0 {
		return 0, 0, fmt.Errorf("audit log %s is empty", auditPath)
	}
	data, err := os.ReadFile(patched)
	if err != nil {
		return 0, 0, err
	}
	applied, mismatches, err = common.RevertEntries(data, entries)
	if err != nil {
		return applied, mismatches, err
	}
	if err := common.WriteFileAtomic(out, data, 0o644); err != nil {
		return applied, mismatches, err
	}
	return applied, mismatches, nil
}
