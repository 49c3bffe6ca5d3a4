// Package install decides where node binaries and chain data may live.
//
// Candidates are probed in order on every call: a location that was
// writable an hour ago may be full or remounted read-only now, so nothing
// about a candidate is cached.
package install

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/disk"
)

// Report is the probe outcome for one candidate root.
type Report struct {
	Path           string
	Writable       bool
	ReadOnlyMount  bool
	AvailableBytes uint64
	RequiredBytes  uint64
	Detail         string
}

// NoCandidateSufficientError lists every candidate with the reason it was
// rejected, so "disk full" and "permission denied" stay distinguishable.
type NoCandidateSufficientError struct {
	Required uint64
	Reports  []Report
}

func (e *NoCandidateSufficientError) Error() string {
	parts := make([]string, 0, len(e.Reports))
	for _, r := range e.Reports {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Path, r.Detail))
	}
	return fmt.Sprintf("no install location can hold %d bytes: %s", e.Required, strings.Join(parts, "; "))
}

// Resolver probes an ordered list of candidate roots.
type Resolver struct {
	candidates []string
	logger     zerolog.Logger

	// probe points are swappable for tests
	usage         func(path string) (uint64, error)
	readOnlyMount func(path string) bool
}

// NewResolver keeps the candidate order as given; earlier entries win.
func NewResolver(logger zerolog.Logger, candidates ...string) *Resolver {
	return &Resolver{
		candidates: candidates,
		logger:     logger,
		usage: func(path string) (uint64, error) {
			stat, err := disk.Usage(path)
			if err != nil {
				return 0, err
			}
			return stat.Free, nil
		},
		readOnlyMount: IsReadOnlyMount,
	}
}

// Resolve returns the first candidate that is writable and has at least
// required bytes free. Every probe is live; no results are reused across
// calls.
func (r *Resolver) Resolve(required uint64) (string, error) {
	reports := make([]Report, 0, len(r.candidates))

	for _, candidate := range r.candidates {
		report := r.probe(candidate, required)
		r.logger.Debug().
			Str("candidate", report.Path).
			Bool("writable", report.Writable).
			Uint64("available", report.AvailableBytes).
			Uint64("required", required).
			Str("detail", report.Detail).
			Msg("probed install candidate")

		if report.Writable && !report.ReadOnlyMount && report.AvailableBytes >= required {
			return candidate, nil
		}
		reports = append(reports, report)
	}

	return "", &NoCandidateSufficientError{Required: required, Reports: reports}
}

func (r *Resolver) probe(candidate string, required uint64) Report {
	report := Report{Path: candidate, RequiredBytes: required}

	if r.readOnlyMount(candidate) {
		report.ReadOnlyMount = true
		report.Detail = "read-only package mount"
		return report
	}

	if err := os.MkdirAll(candidate, 0o755); err != nil {
		report.Detail = fmt.Sprintf("unwritable: %v", err)
		return report
	}

	// A real write probe, not just permission bits: network filesystems and
	// quota setups fail in ways Stat cannot see.
	probe, err := os.CreateTemp(candidate, ".helios-probe-*")
	if err != nil {
		report.Detail = fmt.Sprintf("unwritable: %v", err)
		return report
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	report.Writable = true

	free, err := r.usage(candidate)
	if err != nil {
		report.Detail = fmt.Sprintf("capacity unknown: %v", err)
		return report
	}
	report.AvailableBytes = free
	if free < required {
		report.Detail = fmt.Sprintf("insufficient space: %d available, %d required", free, required)
		return report
	}
	report.Detail = "ok"
	return report
}
