package common

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.SetTotalBytes(200)
	m.AddTrimmed(5)
	m.AddFrame(64)
	m.AddFrame(0)
	m.IncResync()
	m.AddBytes(7)
	m.AddFrame(64)
	m.Stop()

	s := m.Snapshot()
	if s.Frames != 2 || s.Resyncs != 1 || s.Trimmed != 5 || s.Bytes != 140 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if s.TotalBytes != 200 || s.Completion() != 0.7 {
		t.Fatalf("completion %.2f of %d", s.Completion(), s.TotalBytes)
	}
	if s.Duration < 0 {
		t.Fatalf("negative duration")
	}
}

func TestMetricsFilesOverrideTotal(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddFile(100)
			m.SetTotalBytes(100)
			m.AddFrame(50)
		}()
	}
	wg.Wait()
	s := m.Snapshot()
	if s.Files != 4 || s.TotalBytes != 400 || s.Frames != 4 || s.Bytes != 200 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:           "0 B",
		1023:        "1023 B",
		1024:        "1.00 KiB",
		1536:        "1.50 KiB",
		5 * 1 << 20: "5.00 MiB",
	}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressPrinter(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.AddFile(1000)
	m.AddFrame(500)
	var out lockedBuffer
	stop := StartProgressPrinter(&out, m, 5*time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "Progress:") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	stop()
	if !strings.Contains(out.String(), "frames=1") {
		t.Fatalf("progress output missing frame count: %q", out.String())
	}
	StartProgressPrinter(nil, m, time.Millisecond)()
}
