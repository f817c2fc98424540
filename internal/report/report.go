package report

import (
	"encoding/json"
	"os"
	"time"
)

// Summary describes one completed patch run.
type Summary struct {
	Input        string        `json:"input"`
	Output       string        `json:"output"`
	InputBytes   int64         `json:"inputBytes"`
	OutputBytes  int64         `json:"outputBytes"`
	Frames       int           `json:"frames"`
	Trimmed      int           `json:"trimmed"`
	Resyncs      int           `json:"resyncs"`
	Stop         string        `json:"stop"`
	StopOffset   int           `json:"stopOffset,omitempty"`
	Chanmap      string        `json:"chanmap"`
	InputSHA256  string        `json:"inputSha256"`
	OutputSHA256 string        `json:"outputSha256"`
	AuditLog     string        `json:"auditLog,omitempty"`
	Duration     time.Duration `json:"durationNs"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Complete reports whether the pass ran to the end of the stream.
func (s Summary) Complete() bool {
	return s.Stop == "" || s.Stop == "end"
}

func SaveSummaryJSON(sum Summary, out string) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadSummaryJSON(path string) (Summary, error) {
	var sum Summary
	b, err := os.ReadFile(path)
	if err != nil {
		return sum, err
	}
	err = json.Unmarshal(b, &sum)
	return sum, err
}
