package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmr-tortoise/roundtrip/internal/model"
)

// Recorder collects per-run metrics. Each Recorder owns its registry so
// that several runs in one process (and tests) never share collectors.
type Recorder struct {
	registry *prometheus.Registry

	stepDuration *prometheus.GaugeVec
	stepSuccess  *prometheus.GaugeVec
	stepExitCode *prometheus.GaugeVec
	runSuccess   prometheus.Gauge
	runFinished  prometheus.Gauge
	archiveBytes prometheus.Gauge
}

// NewRecorder creates a Recorder with all collectors registered. Every
// step is pre-initialised so skipped steps still appear in the output.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stepDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "roundtrip",
				Subsystem: "step",
				Name:      "duration_seconds",
				Help:      "Wall-clock duration of the pipeline step in the last run.",
			},
			[]string{"step"},
		),
		stepSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "roundtrip",
				Subsystem: "step",
				Name:      "success",
				Help:      "1 if the step succeeded in the last run, 0 otherwise.",
			},
			[]string{"step"},
		),
		stepExitCode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "roundtrip",
				Subsystem: "step",
				Name:      "exit_code",
				Help:      "Exit status of the step's process in the last run (-1 if none).",
			},
			[]string{"step"},
		),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roundtrip",
			Subsystem: "run",
			Name:      "success",
			Help:      "1 if the last run passed, 0 otherwise.",
		}),
		runFinished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roundtrip",
			Subsystem: "run",
			Name:      "finished_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		archiveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roundtrip",
			Subsystem: "run",
			Name:      "archive_bytes",
			Help:      "Size of the exported container archive.",
		}),
	}

	r.registry.MustRegister(
		r.stepDuration,
		r.stepSuccess,
		r.stepExitCode,
		r.runSuccess,
		r.runFinished,
		r.archiveBytes,
	)

	for _, s := range model.Steps {
		r.stepDuration.WithLabelValues(s.String())
		r.stepSuccess.WithLabelValues(s.String())
		r.stepExitCode.WithLabelValues(s.String()).Set(-1)
	}

	return r
}

// StepStarted is a no-op; metrics are recorded when a step finishes.
func (r *Recorder) StepStarted(model.Step, []string) {}

// StepFinished records a step's duration, status and exit code.
func (r *Recorder) StepFinished(res model.StepResult) {
	step := res.Step.String()
	r.stepDuration.WithLabelValues(step).Set(res.Duration.Seconds())
	r.stepExitCode.WithLabelValues(step).Set(float64(res.ExitCode))
	if res.Status == model.StepSucceeded {
		r.stepSuccess.WithLabelValues(step).Set(1)
	} else {
		r.stepSuccess.WithLabelValues(step).Set(0)
	}
}

// RunFinished records the overall verdict.
func (r *Recorder) RunFinished(report *model.RunReport) {
	if report.Passed {
		r.runSuccess.Set(1)
	} else {
		r.runSuccess.Set(0)
	}
	r.runFinished.Set(float64(report.FinishedAt.Unix()))
	r.archiveBytes.Set(float64(report.ArchiveBytes))
}

// Gatherer exposes the registry for tests and custom exporters.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
