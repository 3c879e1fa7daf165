package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"digital.vasic.netprobe/pkg/logging"
	"digital.vasic.netprobe/pkg/scenario"
)

// commandFunc is the function used to create exec.Cmd instances.
// It can be overridden in tests for dependency injection.
var commandFunc = exec.CommandContext

const (
	// DefaultBinary is looked up on PATH.
	DefaultBinary = "iperf3"

	// DefaultGrace is added to the measurement duration to form
	// the subprocess timeout.
	DefaultGrace = 30 * time.Second

	stderrPreviewLen = 512
)

// Iperf3 runs the iperf3 client as a subprocess and parses its
// JSON report.
type Iperf3 struct {
	binary string
	grace  time.Duration
	logger logging.Logger
}

// Option configures an Iperf3 probe.
type Option func(*Iperf3)

// WithBinary sets the iperf3 executable path.
func WithBinary(path string) Option {
	return func(p *Iperf3) {
		p.binary = path
	}
}

// WithGrace sets the extra time allowed beyond the measurement
// duration before the subprocess is killed.
func WithGrace(d time.Duration) Option {
	return func(p *Iperf3) {
		p.grace = d
	}
}

// WithLogger sets the logger that receives probe invocation
// entries.
func WithLogger(l logging.Logger) Option {
	return func(p *Iperf3) {
		p.logger = l
	}
}

// NewIperf3 creates an iperf3 probe.
func NewIperf3(opts ...Option) *Iperf3 {
	p := &Iperf3{
		binary: DefaultBinary,
		grace:  DefaultGrace,
		logger: logging.NullLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Args returns the iperf3 command line for req, without the
// binary name.
func Args(req Request) []string {
	secs := int(math.Ceil(req.Duration.Seconds()))
	args := []string{
		"-c", req.Target.Host,
		"-p", strconv.Itoa(req.Target.Port),
		"-t", strconv.Itoa(secs),
		"-J",
	}
	if req.Direction == scenario.DirectionDownload {
		args = append(args, "-R")
	}
	if bw := strings.TrimSpace(req.Bandwidth); bw != "" {
		args = append(args, "-b", bw+"M")
	}
	return args
}

// Run executes one measurement. The subprocess is killed after
// the request duration plus the grace period, or when ctx ends;
// either case is classified as a timeout.
func (p *Iperf3) Run(
	ctx context.Context, req Request,
) (*Measurement, error) {
	args := Args(req)

	execCtx, cancel := context.WithTimeout(ctx, req.Duration+p.grace)
	defer cancel()

	cmd := commandFunc(execCtx, p.binary, args...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	entry := logging.ProbeLog{
		Timestamp:  start.UTC().Format(time.RFC3339),
		ScenarioID: req.ScenarioID,
		Target:     req.Target.String(),
		Direction:  string(req.Direction),
		Command:    p.binary + " " + strings.Join(args, " "),
		DurationMs: elapsed.Milliseconds(),
	}

	m, perr := p.classify(execCtx, req, err, stdout.Bytes(), &stderr)
	if perr != nil {
		entry.Status = perr.Status
		entry.StderrPreview = preview(stderr.String())
	} else {
		entry.Status = scenario.StatusSuccess
		m.Elapsed = elapsed
	}
	if cmd.ProcessState != nil {
		entry.ExitCode = cmd.ProcessState.ExitCode()
	}
	p.logger.LogProbe(entry)

	if perr != nil {
		return nil, perr
	}
	return m, nil
}

func (p *Iperf3) classify(
	execCtx context.Context,
	req Request,
	runErr error,
	stdout []byte,
	stderr *bytes.Buffer,
) (*Measurement, *scenario.ProbeError) {
	if ctxErr := execCtx.Err(); ctxErr != nil {
		return nil, newError(req, scenario.StatusTimeout, fmt.Errorf(
			"killed after %s: %w", req.Duration+p.grace, ctxErr,
		))
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = reportedError(stdout)
			}
			return nil, newError(req, scenario.StatusFailed, fmt.Errorf(
				"exit code %d: %s", exitErr.ExitCode(), msg,
			))
		}
		return nil, newError(req, scenario.StatusError, fmt.Errorf(
			"iperf3 execution failed: %w", runErr,
		))
	}

	m, err := Parse(stdout, req.Direction)
	if err != nil {
		var pe *scenario.ProbeError
		if errors.As(err, &pe) {
			pe.Target = req.Target
			pe.Direction = req.Direction
			return nil, pe
		}
		return nil, newError(req, scenario.StatusParseError, err)
	}
	return m, nil
}

// Version returns the first line of `iperf3 --version`.
func (p *Iperf3) Version(ctx context.Context) (string, error) {
	cmd := commandFunc(ctx, p.binary, "--version")

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to get iperf3 version: %w", err)
	}

	line, _, _ := strings.Cut(strings.TrimSpace(stdout.String()), "\n")
	return strings.TrimSpace(line), nil
}

// Available reports whether the configured binary can be found
// and is executable.
func (p *Iperf3) Available() bool {
	path, err := exec.LookPath(p.binary)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrPreviewLen {
		return s[:stderrPreviewLen]
	}
	return s
}

// report mirrors the parts of the iperf3 -J document that are used.
type report struct {
	End *struct {
		SumSent     summary `json:"sum_sent"`
		SumReceived summary `json:"sum_received"`
	} `json:"end"`
	Error string `json:"error"`
}

type summary struct {
	Bytes         int64   `json:"bytes"`
	BitsPerSecond float64 `json:"bits_per_second"`
	Retransmits   int     `json:"retransmits"`
	JitterMs      float64 `json:"jitter_ms"`
}

func reportedError(stdout []byte) string {
	var r report
	if json.Unmarshal(stdout, &r) == nil {
		return r.Error
	}
	return ""
}

// Parse extracts a Measurement from an iperf3 JSON report. Upload
// reads end.sum_sent and download reads end.sum_received.
// Retransmits are reported for uploads and jitter for downloads.
func Parse(data []byte, dir scenario.Direction) (*Measurement, error) {
	var r report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid iperf3 output: %w", err)
	}
	if r.Error != "" {
		return nil, &scenario.ProbeError{
			Status:    scenario.StatusFailed,
			Direction: dir,
			Err:       errors.New(r.Error),
		}
	}
	if r.End == nil {
		return nil, errors.New("invalid iperf3 output: missing end section")
	}

	m := &Measurement{}
	if dir == scenario.DirectionDownload {
		s := r.End.SumReceived
		m.BitsPerSecond = s.BitsPerSecond
		m.Bytes = s.Bytes
		m.JitterMs = s.JitterMs
	} else {
		s := r.End.SumSent
		m.BitsPerSecond = s.BitsPerSecond
		m.Bytes = s.Bytes
		m.Retransmits = s.Retransmits
	}
	m.Mbps = math.Round(m.BitsPerSecond/1e6*100) / 100
	return m, nil
}
