// Package progress maps the update pipeline's heterogeneous phases onto a
// single monotonic 0-100 percentage delivered to one caller-supplied sink.
package progress

import (
	"github.com/rs/zerolog"

	"github.com/shelfsync/shelfsync/pkg/logging"
)

// Phase identifies one band of the overall progress scale
type Phase int

// Pipeline phases in execution order
const (
	PhaseAnalyze Phase = iota
	PhasePrepare
	PhaseDownload
	PhaseEnrich
)

// String returns the phase name used in status messages
func (p Phase) String() string {
	switch p {
	case PhaseAnalyze:
		return "analyze"
	case PhasePrepare:
		return "prepare"
	case PhaseDownload:
		return "download"
	case PhaseEnrich:
		return "enrich"
	default:
		return "unknown"
	}
}

// Band is a half-open percentage range owned by one phase
type Band struct {
	Start float64
	End   float64
}

// Bands returns the phase layout. Without an enrichment phase the download
// band stretches to 100.
func Bands(withEnrichment bool) map[Phase]Band {
	bands := map[Phase]Band{
		PhaseAnalyze:  {0, 5},
		PhasePrepare:  {5, 15},
		PhaseDownload: {15, 100},
	}
	if withEnrichment {
		bands[PhaseDownload] = Band{15, 90}
		bands[PhaseEnrich] = Band{90, 100}
	}
	return bands
}

// Update is one progress event. Determinate is false for phase-transition
// status messages that carry no defined fractional progress.
type Update struct {
	Percent     float64
	Determinate bool
	Message     string
}

// Sink receives progress events. A nil sink discards them.
type Sink func(Update)

// Reporter delivers banded, monotonically non-decreasing progress to a
// sink. The sink is treated as untrusted: a panic inside it is swallowed
// so a broken listener can never abort an update.
type Reporter struct {
	sink   Sink
	bands  map[Phase]Band
	last   float64
	logger zerolog.Logger
}

// NewReporter creates a Reporter over the given sink
func NewReporter(sink Sink, withEnrichment bool) *Reporter {
	return &Reporter{
		sink:   sink,
		bands:  Bands(withEnrichment),
		logger: logging.GetLogger("progress"),
	}
}

// SetEnrichment swaps the band layout. Only meaningful before the
// download band starts; earlier bands are identical in both layouts.
func (r *Reporter) SetEnrichment(on bool) {
	r.bands = Bands(on)
}

// Message emits an indeterminate status message
func (r *Reporter) Message(msg string) {
	r.emit(Update{Message: msg})
}

// Step emits progress at the given fraction of a phase band, scaled into
// the overall percentage. Fractions outside [0,1] are clamped.
func (r *Reporter) Step(phase Phase, frac float64, msg string) {
	band, ok := r.bands[phase]
	if !ok {
		r.Message(msg)
		return
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	percent := band.Start + frac*(band.End-band.Start)
	// percent never moves backwards within a session
	if percent < r.last {
		percent = r.last
	}
	r.last = percent
	r.emit(Update{Percent: percent, Determinate: true, Message: msg})
}

// Complete emits the terminal 100% event
func (r *Reporter) Complete(msg string) {
	r.last = 100
	r.emit(Update{Percent: 100, Determinate: true, Message: msg})
}

// Last returns the highest percentage emitted so far
func (r *Reporter) Last() float64 {
	return r.last
}

func (r *Reporter) emit(u Update) {
	if r.sink == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn().Interface("panic", rec).Msg("Progress listener panicked, continuing")
		}
	}()
	r.sink(u)
}
