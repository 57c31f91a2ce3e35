package report

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"enviroplan/internal/metrics"
)

// Generator produces free text from a prompt. The production
// implementation is backed by the Gemini API; tests substitute stubs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	fallbackNoCredential = "AI summary unavailable: no API key configured. Showing raw figures only."
	fallbackAPIFailure   = "AI summary unavailable: the generation service could not be reached. Showing raw figures only."
)

// Summarize renders an executive summary of the stats. It never
// returns an error: a nil generator or a failed call yields a fixed
// fallback string so the dashboard always has text to show.
func Summarize(ctx context.Context, gen Generator, stats Stats, logger *zap.Logger) string {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gen == nil {
		metrics.ReportRequests.WithLabelValues("no_credential").Inc()
		return fallbackNoCredential
	}
	text, err := gen.Generate(ctx, buildPrompt(stats))
	if err != nil {
		logger.Warn("summary generation failed", zap.Error(err))
		metrics.ReportRequests.WithLabelValues("error").Inc()
		return fallbackAPIFailure
	}
	metrics.ReportRequests.WithLabelValues("ok").Inc()
	return strings.TrimSpace(text)
}

func buildPrompt(stats Stats) string {
	var b strings.Builder
	b.WriteString("You are an operations analyst for an environmental services site. ")
	b.WriteString("Write a short executive summary (3-4 sentences) of today's field activity compliance. ")
	b.WriteString("Be factual and mention which processes need attention.\n\n")
	fmt.Fprintf(&b, "Activities planned: %d\n", stats.Total)
	fmt.Fprintf(&b, "Activities executed: %d\n", stats.Executed)
	if math.IsNaN(stats.Compliance) {
		b.WriteString("Overall compliance: n/a (no activities)\n")
	} else {
		fmt.Fprintf(&b, "Overall compliance: %.1f%%\n", stats.Compliance)
	}
	for _, pr := range stats.PerProcess {
		fmt.Fprintf(&b, "- %s: %d/%d executed (%.1f%%)\n", pr.Name, pr.Executed, pr.Total, pr.Rate)
	}
	return b.String()
}
