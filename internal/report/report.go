// Package report renders completed phase reports for the operator.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/danmuck/canlat/internal/exchange"
	"github.com/danmuck/canlat/internal/latency"
	"gopkg.in/yaml.v3"
)

var ErrEmptyPath = errors.New("report: empty output path")

// Run is the exported record of one benchmark run.
type Run struct {
	Node     string        `yaml:"node"`
	Started  time.Time     `yaml:"started"`
	Finished time.Time     `yaml:"finished"`
	Scale    latency.Scale `yaml:"scale"`
	Phases   []Phase       `yaml:"phases"`
	Error    string        `yaml:"error,omitempty"`
}

// Phase is one row of the run; Mean is expressed in the run's scale.
type Phase struct {
	Name       string        `yaml:"name"`
	Transform  string        `yaml:"transform"`
	Mode       exchange.Mode `yaml:"mode"`
	Samples    int           `yaml:"samples"`
	Discarded  int           `yaml:"discarded"`
	Mean       float64       `yaml:"mean"`
	Mismatches int           `yaml:"mismatches"`
	Timeouts   int           `yaml:"timeouts"`
	Elapsed    []Duration    `yaml:"elapsed,omitempty"`
}

// Duration marshals as a Go duration string.
type Duration struct{ time.Duration }

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dd
	return nil
}

// NewRun converts phase reports. Per-round samples are kept when
// withSamples is set.
func NewRun(node string, scale latency.Scale, started time.Time, reports []exchange.PhaseReport, withSamples bool) Run {
	run := Run{
		Node:     node,
		Started:  started,
		Finished: time.Now(),
		Scale:    scale,
		Phases:   make([]Phase, 0, len(reports)),
	}
	for _, r := range reports {
		p := Phase{
			Name:       r.Phase,
			Transform:  r.Transform,
			Mode:       r.Mode,
			Samples:    r.Summary.N(),
			Discarded:  r.Summary.Discarded,
			Mean:       r.Mean(scale),
			Mismatches: r.Mismatches,
			Timeouts:   r.Timeouts,
		}
		if withSamples {
			p.Elapsed = make([]Duration, 0, len(r.Summary.Samples))
			for _, s := range r.Summary.Samples {
				p.Elapsed = append(p.Elapsed, Duration{s})
			}
		}
		run.Phases = append(run.Phases, p)
	}
	return run
}

func MarshalYAML(run Run) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(run); err != nil {
		return nil, fmt.Errorf("report encode failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func WriteYAML(path string, run Run) error {
	if path == "" {
		return ErrEmptyPath
	}
	data, err := MarshalYAML(run)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report dir create failed (%s): %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func LoadYAML(path string) (Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("report load failed (%s): %w", path, err)
	}
	var run Run
	if err := yaml.Unmarshal(data, &run); err != nil {
		return Run{}, fmt.Errorf("report parse failed (%s): %w", path, err)
	}
	return run, nil
}

// Print writes one line per phase with its mean in the run's scale.
func Print(w io.Writer, run Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "PHASE\tMODE\tN\tMEAN (%s)\tMISMATCH\tTIMEOUT\n", run.Scale)
	for _, p := range run.Phases {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.3f\t%d\t%d\n", p.Name, p.Mode, p.Samples, p.Mean, p.Mismatches, p.Timeouts)
	}
	if run.Error != "" {
		fmt.Fprintf(tw, "halted: %s\n", run.Error)
	}
	return tw.Flush()
}
