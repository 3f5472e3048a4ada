// Package cli — report.go renders the run report printed by "roundtrip run".
//
// The report is always printed, also for failed runs, because its main
// job is to tell a human where the retained artifacts are.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mmr-tortoise/roundtrip/internal/model"
)

// notCreated is shown for an artifact the run never got to create.
const notCreated = "(not created)"

// printReport outputs the report in text or JSON format, depending on the
// global --json flag.
func printReport(w io.Writer, report *model.RunReport) error {
	if report == nil {
		return nil
	}
	if IsJSONOutput() {
		return printReportJSON(w, report)
	}
	printReportText(w, report)
	return nil
}

// reportJSON adds the derived verdict and the readable archive size to
// the report's own JSON fields.
type reportJSON struct {
	*model.RunReport
	Result      string `json:"result"`
	ArchiveSize string `json:"archiveSize"`
}

// printReportJSON outputs the report as structured JSON.
func printReportJSON(w io.Writer, report *model.RunReport) error {
	data, err := json.MarshalIndent(reportJSON{
		RunReport:   report,
		Result:      report.Result(),
		ArchiveSize: humanize.Bytes(uint64(report.ArchiveBytes)),
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printReportText outputs the report as human-readable text.
//
// The format is:
//
//	roundtrip PASS  run 01JB...  revision 3f2c9a1b7d4e
//
//	STEP       STATUS     EXIT  DURATION  LOG
//	prepare    succeeded  -     12ms      -
//	build      succeeded  0     41.2s     /work/logs/docker.build.log
//	...
//
//	Artifacts (kept for inspection):
//	  backup dir     /tmp/roundtrip-backup-123
//	  ...
func printReportText(w io.Writer, report *model.RunReport) {
	fmt.Fprintf(w, "roundtrip %s  run %s  revision %s  took %s\n",
		report.Result(),
		report.RunID,
		report.Revision.String(),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	fmt.Fprintf(w, "  image %s, container %s\n\n", report.Namespace.Image, report.Namespace.Container)

	fmt.Fprintf(w, "%-10s %-10s %-5s %-9s %s\n", "STEP", "STATUS", "EXIT", "DURATION", "LOG")
	for _, s := range report.Steps {
		fmt.Fprintf(w, "%-10s %-10s %-5s %-9s %s\n",
			s.Step.String(),
			s.Status.String(),
			FormatExitCode(s),
			FormatStepDuration(s),
			FormatOptional(s.LogPath),
		)
	}

	if failed, ok := report.FailedStep(); ok && failed.Error != "" {
		fmt.Fprintf(w, "\n%s failed: %s\n", failed.Step, failed.Error)
	}

	a := report.Artifacts
	fmt.Fprintf(w, "\nArtifacts (kept for inspection):\n")
	fmt.Fprintf(w, "  %-14s %s\n", "backup dir", FormatOptional(a.BackupDir))
	fmt.Fprintf(w, "  %-14s %s\n", "archive", FormatArchive(a.ArchivePath, report.ArchiveBytes))
	fmt.Fprintf(w, "  %-14s %s\n", "logs", FormatOptional(a.LogDir))
	fmt.Fprintf(w, "  %-14s %s\n", "build context", FormatOptional(a.BuildContext))
}

// FormatExitCode returns the process exit status of a step, or "-" when
// no process ran (skipped steps and in-process steps).
func FormatExitCode(s model.StepResult) string {
	if s.Status == model.StepSkipped || s.ExitCode < 0 || len(s.Args) == 0 {
		return "-"
	}
	return strconv.Itoa(s.ExitCode)
}

// FormatStepDuration rounds a step's duration for display, or returns "-"
// for a skipped step.
func FormatStepDuration(s model.StepResult) string {
	if s.Status == model.StepSkipped {
		return "-"
	}
	if s.Duration < time.Second {
		return s.Duration.Round(time.Millisecond).String()
	}
	return s.Duration.Round(100 * time.Millisecond).String()
}

// FormatOptional returns s, or "-" when s is empty.
func FormatOptional(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// FormatArchive returns the archive path with its human-readable size,
// or marks it as not created when no file exists at path.
//
// Example:
//
//	("/w/exported-backup-image.tar", 1200000) → "/w/exported-backup-image.tar (1.2 MB)"
func FormatArchive(path string, size int64) string {
	if path == "" {
		return "-"
	}
	if size == 0 {
		if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
			return path + " " + notCreated
		}
	}
	return fmt.Sprintf("%s (%s)", path, humanize.Bytes(uint64(size)))
}
