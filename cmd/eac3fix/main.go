package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/eac3fix/internal/common"
	"example.com/eac3fix/internal/config"
	"example.com/eac3fix/internal/console"
	"example.com/eac3fix/internal/eac3"
	"example.com/eac3fix/internal/pipeline"
	"example.com/eac3fix/internal/report"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	cmd := args[0]
	// eac3fix -i file.eac3 behaves like "patch".
	if strings.HasPrefix(cmd, "-") && cmd != "-h" && cmd != "--help" {
		return patchCmd(args, stdout, stderr)
	}
	switch cmd {
	case "patch":
		return patchCmd(args[1:], stdout, stderr)
	case "verify":
		return verifyCmd(args[1:], stdout, stderr)
	case "undo":
		return undoCmd(args[1:], stdout, stderr)
	case "report":
		return reportCmd(args[1:], stdout, stderr)
	case "batch":
		return batchCmd(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "eac3fix %s (built %s)\n", version, buildDate)
		return exitOK
	default:
		usage(stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `eac3fix %s (built %s) <command> [options]

Commands:
  patch   -i <file.eac3> [--out <file>] [--config <eac3fix.yaml>] [--audit] [--summary <summary.json>] [--pdf <report.pdf>] [--metrics] [--no-color]
  verify  -i <file.eac3> [--out <frames.jsonl>]
  undo    --in <file.patched.eac3> --audit <audit.jsonl> --out <restored.eac3>
  report  --summary <summary.json> --pdf <report.pdf>
  batch   --in <dir> [--out-dir <dir>] [--concurrency <n>] [--progress]
  version
`, version, buildDate)
}

// runtimeEnv is the configuration shared by every command.
type runtimeEnv struct {
	cfg      config.Config
	console  *console.Console
	closeLog func() error
}

func setup(configPath string, noColor bool, stdout io.Writer) (*runtimeEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Logs.Directory == "" {
		// Console output already carries every message; the plain log
		// only goes to a file when one is configured.
		cfg.Logs.Quiet = true
	}
	closeLog, err := common.SetupLogging(cfg.Logs)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	return &runtimeEnv{
		cfg:      cfg,
		console:  console.New(stdout, cfg.ColorEnabled() && !noColor),
		closeLog: closeLog,
	}, nil
}

func (e *runtimeEnv) Close() {
	if e == nil || e.closeLog == nil {
		return
	}
	if err := e.closeLog(); err != nil {
		fmt.Fprintln(os.Stderr, "close log:", err)
	}
}

func patchCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("patch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var in string
	fs.StringVar(&in, "in", "", "input .eac3 file")
	fs.StringVar(&in, "i", "", "input .eac3 file (shorthand)")
	fs.StringVar(&in, "input", "", "input .eac3 file")
	out := fs.String("out", "", "output file (default <input>.patched.eac3)")
	configPath := fs.String("config", "", "configuration file (default "+config.DefaultPath+")")
	audit := fs.Bool("audit", false, "write a JSONL audit log next to the output")
	auditPath := fs.String("audit-path", "", "audit log path (implies --audit)")
	summaryPath := fs.String("summary", "", "write a JSON run summary")
	pdfPath := fs.String("pdf", "", "write a PDF run report")
	metricsFlag := fs.Bool("metrics", false, "print throughput metrics")
	noColor := fs.Bool("no-color", false, "disable coloured output")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if in == "" {
		fmt.Fprintln(stderr, "required: -i/--in")
		return exitUsage
	}

	env, err := setup(*configPath, *noColor, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer env.Close()
	con := env.console

	opts := pipeline.FileOptions{
		Output:    *out,
		OutputDir: env.cfg.OutputDir,
		Suffix:    env.cfg.OutputSuffix,
		Notifier:  con,
	}
	if *auditPath != "" {
		opts.AuditPath = *auditPath
	} else if *audit || env.cfg.Audit {
		opts.AuditPath = opts.ResolveOutput(in) + ".audit.jsonl"
	}
	var metrics *common.Metrics
	if *metricsFlag {
		metrics = common.NewMetrics()
		metrics.Start()
		opts.Metrics = metrics
	}

	con.OK("Input  : " + filepath.Base(in))
	sum, err := pipeline.PatchFile(in, opts)
	con.Done()
	if metrics != nil {
		metrics.Stop()
	}
	if err != nil {
		con.Err(err.Error())
		return exitError
	}

	con.OK(fmt.Sprintf("Frames : %d", sum.Frames))
	con.OK("Output : " + filepath.Base(sum.Output))
	if sum.AuditLog != "" {
		con.Info("Audit  : " + sum.AuditLog)
	}
	if *summaryPath == "" && env.cfg.Summary {
		*summaryPath = sum.Output + ".summary.json"
	}
	if *summaryPath != "" {
		if err := report.SaveSummaryJSON(sum, *summaryPath); err != nil {
			con.Err("write summary: " + err.Error())
			return exitError
		}
		con.Info("Summary: " + *summaryPath)
	}
	if *pdfPath != "" {
		if err := report.SaveSummaryPDF(sum, *pdfPath); err != nil {
			con.Err("write pdf: " + err.Error())
			return exitError
		}
		con.Info("Report : " + *pdfPath)
	}
	if metrics != nil {
		printMetrics(stdout, metrics.Snapshot())
	}
	return exitOK
}

func printMetrics(w io.Writer, snap common.MetricsSnapshot) {
	fmt.Fprintf(w, "Metrics: duration=%s files=%d frames=%d resyncs=%d trimmed=%d processed=%s throughput=%.2f MB/s\n",
		snap.Duration.Round(10*time.Millisecond),
		snap.Files,
		snap.Frames,
		snap.Resyncs,
		snap.Trimmed,
		common.FormatBytes(snap.Bytes),
		snap.ThroughputBytesPerSecond()/1_000_000,
	)
}

func verifyCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var in string
	fs.StringVar(&in, "in", "", "input .eac3 file")
	fs.StringVar(&in, "i", "", "input .eac3 file (shorthand)")
	outPath := fs.String("out", "", "write per-frame results as JSONL")
	noColor := fs.Bool("no-color", false, "disable coloured output")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if in == "" {
		fmt.Fprintln(stderr, "required: -i/--in")
		return exitUsage
	}
	con := console.New(stdout, !*noColor)

	data, err := os.ReadFile(in)
	if err != nil {
		con.Err(err.Error())
		return exitError
	}
	res, err := eac3.Scan(data, nil)
	if err != nil {
		con.Err(err.Error())
		return exitError
	}
	if *outPath != "" {
		if err := writeFramesNDJSON(*outPath, res.Frames); err != nil {
			con.Err("write frames: " + err.Error())
			return exitError
		}
	}

	patched := 0
	for _, f := range res.Frames {
		if f.Patched() {
			patched++
		}
	}
	if res.Leading > 0 {
		con.Warn(fmt.Sprintf("%d bytes before first syncword", res.Leading))
	}
	if err := res.Stop.Err(); err != nil {
		con.Warn(fmt.Sprintf("%v at offset %d", err, res.StopOffset))
	}
	con.Info(fmt.Sprintf("Frames : %d (%d with fixed channel map)", len(res.Frames), patched))
	if bad := res.Mismatches(); bad > 0 {
		for _, f := range res.Frames {
			if !f.CRCOK() {
				con.Err(fmt.Sprintf("frame %d at offset %d: crc 0x%04X, expected 0x%04X", f.Index, f.Offset, f.StoredCRC, f.ComputedCRC))
			}
		}
		con.Err(fmt.Sprintf("%d frame(s) failed CRC", bad))
		return exitError
	}
	con.OK("All frame CRCs verify")
	return exitOK
}

func writeFramesNDJSON(path string, frames []eac3.FrameInfo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, fr := range frames {
		row := struct {
			eac3.FrameInfo
			CRCOK bool `json:"crcOk"`
		}{fr, fr.CRCOK()}
		b, err := json.Marshal(row)
		if err != nil {
			return err
		}
		w.Write(b)
		w.WriteString("\n")
	}
	return w.Flush()
}

func undoCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("undo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "patched .eac3 file")
	audit := fs.String("audit", "", "audit log (jsonl)")
	out := fs.String("out", "", "restored output file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *in == "" || *audit == "" || *out == "" {
		fmt.Fprintln(stderr, "required: --in, --audit, --out")
		return exitUsage
	}

	patchedHash, _, err := common.Sha256OfFile(*in)
	if err != nil {
		fmt.Fprintln(stderr, "hash input:", err)
		return exitError
	}
	applied, mismatches, err := pipeline.RestoreFile(*in, *audit, *out)
	if err != nil {
		fmt.Fprintln(stderr, "undo:", err)
		return exitError
	}
	restoredHash, _, err := common.Sha256OfFile(*out)
	if err != nil {
		fmt.Fprintln(stderr, "hash restored:", err)
		return exitError
	}

	fmt.Fprintf(stdout, "Restored %d patch(es) to %s\n", applied, *out)
	fmt.Fprintf(stdout, "Patched SHA256: %s\n", patchedHash)
	fmt.Fprintf(stdout, "Restored SHA256: %s\n", restoredHash)
	if mismatches > 0 {
		fmt.Fprintf(stdout, "Warning: %d patch(es) did not match expected patched bytes; original bytes reapplied regardless.\n", mismatches)
	}
	return exitOK
}

func reportCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	summaryPath := fs.String("summary", "", "summary.json written by patch")
	pdfPath := fs.String("pdf", "", "output PDF report")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *summaryPath == "" || *pdfPath == "" {
		fmt.Fprintln(stderr, "required: --summary, --pdf")
		return exitUsage
	}
	sum, err := report.LoadSummaryJSON(*summaryPath)
	if err != nil {
		fmt.Fprintln(stderr, "load summary:", err)
		return exitError
	}
	if err := report.SaveSummaryPDF(sum, *pdfPath); err != nil {
		fmt.Fprintln(stderr, "write pdf:", err)
		return exitError
	}
	fmt.Fprintln(stdout, "Wrote PDF:", *pdfPath)
	return exitOK
}

func batchCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inDir := fs.String("in", ".", "input directory")
	outDir := fs.String("out-dir", "", "output directory (default next to each input)")
	configPath := fs.String("config", "", "configuration file (default "+config.DefaultPath+")")
	concurrency := fs.Int("concurrency", 0, "files patched in parallel (default from config)")
	audit := fs.Bool("audit", false, "write an audit log per file")
	progress := fs.Bool("progress", false, "display batch progress")
	noColor := fs.Bool("no-color", false, "disable coloured output")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	env, err := setup(*configPath, *noColor, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer env.Close()
	con := env.console

	files, err := collectInputs(*inDir, env.cfg.OutputSuffix)
	if err != nil {
		con.Err("scan input dir: " + err.Error())
		return exitError
	}
	if len(files) == 0 {
		con.Warn("no .eac3 files found in " + *inDir)
		return exitOK
	}
	workers := *concurrency
	if workers <= 0 {
		workers = env.cfg.Concurrency
	}
	if workers > len(files) {
		workers = len(files)
	}
	dest := *outDir
	if dest == "" {
		dest = env.cfg.OutputDir
	}

	metrics := common.NewMetrics()
	metrics.Start()
	var stopProgress func()
	if *progress {
		stopProgress = common.StartProgressPrinter(stderr, metrics, 500*time.Millisecond)
	}

	plan := planBatch(*inDir, dest, env.cfg.OutputSuffix, files)
	results := make([]report.Summary, len(plan))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				job := &plan[i]
				opts := pipeline.FileOptions{
					Output:   job.output,
					Suffix:   env.cfg.OutputSuffix,
					Notifier: con.WithPrefix(job.name),
					Metrics:  metrics,
				}
				if *audit || env.cfg.Audit {
					opts.AuditPath = job.output + ".audit.jsonl"
				}
				results[i], job.err = pipeline.PatchFile(job.input, opts)
			}
		}()
	}
	for i := range plan {
		if plan[i].err == nil {
			jobs <- i
		}
	}
	close(jobs)
	wg.Wait()
	if stopProgress != nil {
		stopProgress()
	}
	metrics.Stop()

	failed := 0
	for i, job := range plan {
		if job.err != nil {
			failed++
			con.Err(fmt.Sprintf("%s: %v", job.name, job.err))
			continue
		}
		con.OK(fmt.Sprintf("%s: %d frame(s) -> %s", job.name, results[i].Frames, results[i].Output))
	}
	printMetrics(stdout, metrics.Snapshot())
	if failed > 0 {
		con.Err(fmt.Sprintf("%d of %d file(s) failed", failed, len(files)))
		return exitError
	}
	return exitOK
}

// batchJob is one input of a batch run and the output it is written to.
type batchJob struct {
	input  string
	name   string
	output string
	err    error
}

// planBatch assigns every input its output path. With an output directory the
// input's path relative to inDir is kept beneath it. Inputs whose output would
// repeat an earlier one are failed up front.
func planBatch(inDir, outDir, suffix string, files []string) []batchJob {
	plan := make([]batchJob, len(files))
	seen := make(map[string]int, len(files))
	for i, path := range files {
		name := path
		if rel, err := filepath.Rel(inDir, path); err == nil {
			name = rel
		}
		out := eac3.OutputPath(path, suffix)
		if outDir != "" {
			out = filepath.Join(outDir, filepath.Dir(name), filepath.Base(out))
		}
		plan[i] = batchJob{input: path, name: name, output: out}
		// case-folded so case-insensitive filesystems cannot merge two outputs
		key := strings.ToLower(filepath.Clean(out))
		if first, ok := seen[key]; ok {
			plan[i].err = fmt.Errorf("output %s already written for %s", out, plan[first].name)
			continue
		}
		seen[key] = i
	}
	return plan
}

// collectInputs lists .eac3 files under dir, skipping earlier outputs.
func collectInputs(dir, suffix string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New(dir + " is not a directory")
	}
	var files []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		if !strings.HasSuffix(name, ".eac3") {
			return nil
		}
		if suffix != "" && strings.HasSuffix(name, strings.ToLower(suffix)) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
