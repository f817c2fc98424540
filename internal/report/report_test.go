package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleSummary() Summary {
	return Summary{
		Input:        "/data/in.eac3",
		Output:       "/data/in.patched.eac3",
		InputBytes:   261,
		OutputBytes:  256,
		Frames:       3,
		Trimmed:      5,
		Stop:         "end",
		Chanmap:      "0x6800",
		InputSHA256:  "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		OutputSHA256: "60303ae22b998861bce3b28f33eec1be758a213c86c93c076dbe9f558c11c752",
		Duration:     12 * time.Millisecond,
		CreatedAt:    time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestSummaryJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	in := sampleSummary()
	if err := SaveSummaryJSON(in, path); err != nil {
		t.Fatalf("SaveSummaryJSON: %v", err)
	}
	out, err := LoadSummaryJSON(path)
	if err != nil {
		t.Fatalf("LoadSummaryJSON: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("createdAt %v, want %v", out.CreatedAt, in.CreatedAt)
	}
	out.CreatedAt = in.CreatedAt
	if out != in {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
	if !out.Complete() {
		t.Fatalf("summary with stop=end should be complete")
	}
	out.Stop = "truncated-frame"
	if out.Complete() {
		t.Fatalf("truncated summary reported complete")
	}
}

func TestHashDigits(t *testing.T) {
	cases := map[string]string{
		" ab:12-cd ":  "AB12CD",
		"9F86d08":     "9F86D08",
		"  zz-- ":     "",
		"":            "",
		"sha256=0aFf": "A2560AFF",
	}
	for in, want := range cases {
		if got := hashDigits(in); got != want {
			t.Fatalf("hashDigits(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSaveSummaryPDFEmbedsQR(t *testing.T) {
	dir := t.TempDir()
	withQR := filepath.Join(dir, "with.pdf")
	withoutQR := filepath.Join(dir, "without.pdf")
	sum := sampleSummary()
	if err := SaveSummaryPDF(sum, withQR); err != nil {
		t.Fatalf("SaveSummaryPDF: %v", err)
	}
	sum.OutputSHA256 = ""
	if err := SaveSummaryPDF(sum, withoutQR); err != nil {
		t.Fatalf("SaveSummaryPDF without hash: %v", err)
	}
	a, errA := os.ReadFile(withQR)
	b, errB := os.ReadFile(withoutQR)
	if errA != nil || errB != nil {
		t.Fatalf("ReadFile: %v %v", errA, errB)
	}
	if !bytes.Contains(a, []byte("/Subtype /Image")) {
		t.Fatalf("QR image missing from report")
	}
	if bytes.Contains(b, []byte("/Subtype /Image")) {
		t.Fatalf("report without a digest should carry no image")
	}
}

func TestSaveSummaryPDF(t *testing.T) {
	dir := t.TempDir()
	for name, sum := range map[string]Summary{
		"full.pdf":  sampleSummary(),
		"empty.pdf": {Stop: "resync-exhausted", StopOffset: 128},
	} {
		path := filepath.Join(dir, name)
		if err := SaveSummaryPDF(sum, path); err != nil {
			t.Fatalf("%s: SaveSummaryPDF: %v", name, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("%s: ReadFile: %v", name, err)
		}
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			t.Fatalf("%s: output is not a PDF", name)
		}
	}
}

func TestStopLabel(t *testing.T) {
	cases := []struct {
		sum  Summary
		want string
	}{
		{Summary{}, "complete"},
		{Summary{Stop: "end"}, "complete"},
		{Summary{Stop: "truncated-frame", StopOffset: 64}, "truncated frame at offset 64"},
		{Summary{Stop: "resync-exhausted", StopOffset: 9}, "sync lost at offset 9"},
		{Summary{Stop: "other"}, "other"},
	}
	for _, tc := range cases {
		if got := stopLabel(tc.sum); got != tc.want {
			t.Fatalf("stopLabel(%q) = %q, want %q", tc.sum.Stop, got, tc.want)
		}
	}
}
