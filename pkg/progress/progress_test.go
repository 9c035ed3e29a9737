// pkg/progress/progress_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test band mapping, monotonicity and listener isolation

package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(updates *[]Update) Sink {
	return func(u Update) { *updates = append(*updates, u) }
}

func TestBandsLayout(t *testing.T) {
	with := Bands(true)
	assert.Equal(t, Band{0, 5}, with[PhaseAnalyze])
	assert.Equal(t, Band{5, 15}, with[PhasePrepare])
	assert.Equal(t, Band{15, 90}, with[PhaseDownload])
	assert.Equal(t, Band{90, 100}, with[PhaseEnrich])

	without := Bands(false)
	assert.Equal(t, Band{15, 100}, without[PhaseDownload])
	_, hasEnrich := without[PhaseEnrich]
	assert.False(t, hasEnrich)
}

func TestStepScalesIntoBand(t *testing.T) {
	var updates []Update
	r := NewReporter(collect(&updates), true)

	r.Step(PhaseDownload, 0.5, "halfway")
	require.Len(t, updates, 1)
	assert.True(t, updates[0].Determinate)
	assert.InDelta(t, 52.5, updates[0].Percent, 0.001)
}

func TestStepClampsFraction(t *testing.T) {
	var updates []Update
	r := NewReporter(collect(&updates), false)

	r.Step(PhaseAnalyze, -3, "under")
	r.Step(PhaseAnalyze, 7, "over")
	require.Len(t, updates, 2)
	assert.Equal(t, 0.0, updates[0].Percent)
	assert.Equal(t, 5.0, updates[1].Percent)
}

func TestMonotonicityAcrossPhases(t *testing.T) {
	var updates []Update
	r := NewReporter(collect(&updates), true)

	r.Step(PhaseAnalyze, 1, "a")
	r.Step(PhasePrepare, 0.5, "b")
	r.Step(PhaseDownload, 1, "c")
	// a late, lower report must not move the needle backwards
	r.Step(PhaseDownload, 0.1, "straggler")
	r.Step(PhaseEnrich, 0.5, "d")
	r.Complete("done")

	var last float64
	for _, u := range updates {
		require.True(t, u.Determinate)
		assert.GreaterOrEqual(t, u.Percent, last, "message %q", u.Message)
		last = u.Percent
	}
	assert.Equal(t, 100.0, last)
}

func TestMessageIsIndeterminate(t *testing.T) {
	var updates []Update
	r := NewReporter(collect(&updates), false)

	r.Message("switching phase")
	require.Len(t, updates, 1)
	assert.False(t, updates[0].Determinate)
	assert.Equal(t, "switching phase", updates[0].Message)
}

func TestNilSinkDiscards(t *testing.T) {
	r := NewReporter(nil, false)
	r.Message("into the void")
	r.Step(PhaseDownload, 0.5, "still fine")
	r.Complete("done")
	assert.Equal(t, 100.0, r.Last())
}

func TestListenerPanicIsSwallowed(t *testing.T) {
	calls := 0
	r := NewReporter(func(Update) {
		calls++
		panic("listener bug")
	}, false)

	assert.NotPanics(t, func() {
		r.Step(PhaseDownload, 0.2, "one")
		r.Step(PhaseDownload, 0.4, "two")
	})
	assert.Equal(t, 2, calls)
	// state still advanced despite the panics
	assert.Greater(t, r.Last(), 0.0)
}
