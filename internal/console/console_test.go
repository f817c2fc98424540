package console

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestConsolePlainLines(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	c := New(&buf, false)
	c.OK("Input  : sample.eac3")
	c.Warn("Trimmed 5 bytes")
	c.Progress(1)
	c.Progress(2)
	c.Err("boom")
	c.Info("done")

	want := "[OK] Input  : sample.eac3\n" +
		"[WARN] Trimmed 5 bytes\n" +
		"\r[INFO] Frames: 1\r[INFO] Frames: 2\n" +
		"[ERR] boom\n" +
		"[INFO] done\n"
	if got := buf.String(); got != want {
		t.Fatalf("output mismatch\n got %q\nwant %q", got, want)
	}
}

func TestConsoleColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	New(&buf, true).OK("ok")
	if got := buf.String(); got != "\x1b[32m[OK]\x1b[0m ok\n" {
		t.Fatalf("unexpected coloured output %q", got)
	}

	t.Setenv("NO_COLOR", "1")
	buf.Reset()
	New(&buf, true).Err("plain")
	if got := buf.String(); got != "[ERR] plain\n" {
		t.Fatalf("NO_COLOR ignored: %q", got)
	}
}

func TestConsoleColorProgress(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	New(&buf, true).Progress(7)
	if got := buf.String(); got != "\r\x1b[36m[INFO]\x1b[0m Frames: \x1b[1m7\x1b[0m" {
		t.Fatalf("unexpected progress output %q", got)
	}
}

func TestConsoleNoColorOnRedirectedFile(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	path := filepath.Join(t.TempDir(), "out.log")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	c := New(f, true)
	c.Warn("Trimmed 5 bytes")
	c.Progress(1)
	c.Done()
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := string(data); got != "[WARN] Trimmed 5 bytes\n\r[INFO] Frames: 1\n" {
		t.Fatalf("escape codes written to a plain file: %q", got)
	}
}

func TestConsoleDoneAndProgressOff(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, false)
	c.Done()
	if buf.Len() != 0 {
		t.Fatalf("Done without progress wrote %q", buf.String())
	}
	c.Progress(3)
	c.Done()
	c.Done()
	if got := buf.String(); got != "\r[INFO] Frames: 3\n" {
		t.Fatalf("unexpected output %q", got)
	}

	buf.Reset()
	c.SetProgress(false)
	c.Progress(4)
	if buf.Len() != 0 {
		t.Fatalf("progress written while disabled: %q", buf.String())
	}
}

func TestPrefixed(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, false)
	p := c.WithPrefix("a.eac3")
	p.Warn("Truncated frame")
	p.Progress(10)
	c.WithPrefix(" ").OK("bare")
	if got := buf.String(); got != "[WARN] a.eac3: Truncated frame\n[OK] bare\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestConsoleConcurrentLines(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, false)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.WithPrefix("f").Info("line")
		}()
	}
	wg.Wait()
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("expected 8 lines, got %d", len(lines))
	}
	for _, l := range lines {
		if l != "[INFO] f: line" {
			t.Fatalf("interleaved line %q", l)
		}
	}
}
