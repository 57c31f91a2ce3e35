package report

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enviroplan/internal/domain"
)

func activity(processID string, status domain.ActivityStatus) domain.Activity {
	return domain.Activity{ID: "a-" + processID + string(status), ProcessID: processID, Status: status}
}

var procs = []domain.Process{
	{ID: "P1", Name: "Waste management"},
	{ID: "P2", Name: "Water treatment"},
}

func TestComputeEmpty(t *testing.T) {
	stats := Compute(nil, procs)
	assert.Equal(t, 0, stats.Total)
	assert.True(t, math.IsNaN(stats.Compliance), "compliance of empty set must be NaN")
	require.Len(t, stats.PerProcess, 2)
	for _, pr := range stats.PerProcess {
		assert.Zero(t, pr.Rate, "empty process must report rate 0, not NaN")
	}
}

func TestComputeRates(t *testing.T) {
	activities := []domain.Activity{
		activity("P1", domain.StatusExecuted),
		activity("P1", domain.StatusExecuted),
		activity("P1", domain.StatusPlanned),
		activity("P2", domain.StatusExecuted),
	}
	stats := Compute(activities, procs)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.Executed)
	assert.InDelta(t, 75.0, stats.Compliance, 0.001)
	require.Len(t, stats.PerProcess, 2)
	assert.InDelta(t, 66.666, stats.PerProcess[0].Rate, 0.01)
	assert.InDelta(t, 100.0, stats.PerProcess[1].Rate, 0.001)
}

func TestComputeCancelledNotExecuted(t *testing.T) {
	activities := []domain.Activity{
		activity("P1", domain.StatusCancelled),
		activity("P1", domain.StatusRescheduled),
	}
	stats := Compute(activities, procs)
	assert.Equal(t, 0, stats.Executed)
	assert.InDelta(t, 0.0, stats.Compliance, 0.001)
}

func TestComputeSkipsDanglingProcess(t *testing.T) {
	activities := []domain.Activity{
		activity("P-removed", domain.StatusExecuted),
		activity("P1", domain.StatusExecuted),
	}
	stats := Compute(activities, procs)
	// dangling activity still counts toward the overall figures
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Executed)
	assert.Equal(t, 1, stats.PerProcess[0].Total)
}

type stubGenerator struct {
	text string
	err  error
}

func (s stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return s.text, s.err
}

func TestSummarizeNilGeneratorFallsBack(t *testing.T) {
	text := Summarize(context.Background(), nil, Stats{}, nil)
	assert.Equal(t, fallbackNoCredential, text)
}

func TestSummarizeErrorFallsBack(t *testing.T) {
	gen := stubGenerator{err: errors.New("quota exceeded")}
	text := Summarize(context.Background(), gen, Stats{Total: 4, Executed: 3, Compliance: 75}, nil)
	assert.Equal(t, fallbackAPIFailure, text)
}

func TestSummarizeSuccess(t *testing.T) {
	gen := stubGenerator{text: "  All good today.\n"}
	text := Summarize(context.Background(), gen, Stats{Total: 1, Executed: 1, Compliance: 100}, nil)
	assert.Equal(t, "All good today.", text)
}

func TestBuildPrompt(t *testing.T) {
	stats := Stats{
		Total: 4, Executed: 3, Compliance: 75,
		PerProcess: []ProcessRate{{Name: "Waste management", Total: 3, Executed: 2, Rate: 66.7}},
	}
	prompt := buildPrompt(stats)
	assert.Contains(t, prompt, "Activities planned: 4")
	assert.Contains(t, prompt, "Overall compliance: 75.0%")
	assert.Contains(t, prompt, "Waste management: 2/3 executed")

	empty := buildPrompt(Compute(nil, nil))
	assert.Contains(t, empty, "n/a (no activities)")
}
