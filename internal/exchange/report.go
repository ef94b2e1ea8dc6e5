package exchange

import "github.com/danmuck/canlat/internal/latency"

// PhaseReport is the completed record of one phase.
type PhaseReport struct {
	Phase      string                `json:"phase" yaml:"phase"`
	Transform  string                `json:"transform" yaml:"transform"`
	Mode       Mode                  `json:"mode" yaml:"mode"`
	Summary    latency.Summary       `json:"summary" yaml:"summary"`
	Results    []latency.RoundResult `json:"results" yaml:"results"`
	Mismatches int                   `json:"mismatches" yaml:"mismatches"`
	Timeouts   int                   `json:"timeouts" yaml:"timeouts"`
}

// Mean is the kept-sample mean in the given scale.
func (r PhaseReport) Mean(scale latency.Scale) float64 {
	return r.Summary.Mean(scale)
}

func buildReport(p Phase, rec *latency.Recorder) PhaseReport {
	results := rec.Results()
	report := PhaseReport{
		Phase:     p.Name,
		Transform: p.Transform,
		Mode:      p.Mode,
		Summary:   rec.Summary(),
		Results:   results,
	}
	for _, res := range results {
		switch res.Outcome {
		case latency.OutcomeMismatch:
			report.Mismatches++
		case latency.OutcomeTimeout:
			report.Timeouts++
		}
	}
	return report
}
