// Package observability holds roundtrip's logging and metrics.
//
// Logs go to stderr through zerolog's console writer so that stdout stays
// reserved for the run report. Metrics are collected in a private
// Prometheus registry and written once per run as a node-exporter
// textfile, which suits a short-lived CLI better than a scrape endpoint.
package observability

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/roundtrip/internal/model"
)

// NewLogger returns a console logger writing to w at the given level.
// verbose forces debug level regardless of level.
func NewLogger(w io.Writer, level string, verbose bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
	}
	lvl := ParseLevel(level)
	if verbose {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "roundtrip").Logger()
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// stepMessages are the progress lines shown when a step starts.
var stepMessages = map[model.Step]string{
	model.StepPreflight: "Checking container name...",
	model.StepPrepare:   "Preparing backup directory and build context...",
	model.StepBuild:     "Building Docker image...",
	model.StepBackup:    "Running backup container...",
	model.StepExport:    "Exporting backup container...",
	model.StepRemove:    "Removing backup container...",
	model.StepRestore:   "Running restore container...",
}

// LogObserver reports pipeline progress through a zerolog logger.
type LogObserver struct {
	Logger zerolog.Logger
}

// StepStarted logs the step's progress line, and its argv at debug level.
func (o LogObserver) StepStarted(step model.Step, args []string) {
	msg, ok := stepMessages[step]
	if !ok {
		msg = "Running " + step.String() + "..."
	}
	o.Logger.Info().Str("step", step.String()).Msg(msg)
	if len(args) > 0 {
		o.Logger.Debug().Str("step", step.String()).Strs("args", args).Msg("exec")
	}
}

// StepFinished logs the outcome of a step.
func (o LogObserver) StepFinished(r model.StepResult) {
	switch r.Status {
	case model.StepFailed:
		ev := o.Logger.Error().
			Str("step", r.Step.String()).
			Int("exit_code", r.ExitCode).
			Dur("duration", r.Duration)
		if r.LogPath != "" {
			ev = ev.Str("log", r.LogPath)
		}
		ev.Msg(r.Error)
	default:
		if r.Detail != "" {
			o.Logger.Info().Str("step", r.Step.String()).Msg(r.Detail)
		}
		o.Logger.Debug().
			Str("step", r.Step.String()).
			Str("status", r.Status.String()).
			Dur("duration", r.Duration).
			Msg("step finished")
	}
}

// RunFinished logs the overall verdict.
func (o LogObserver) RunFinished(report *model.RunReport) {
	ev := o.Logger.Info()
	if !report.Passed {
		ev = o.Logger.Error()
	}
	ev.Str("run_id", report.RunID).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Run " + report.Result())
}
