package agent

import (
	"context"
	"log/slog"
	"strings"
)

// Advisor is a read-only context provider consulted on every chat() call.
// Its output is appended to the system prompt; a failing advisor is logged
// and skipped rather than allowed to block the chat.
type Advisor interface {
	Advise(ctx context.Context, message, channel string) (string, error)
}

// AdvisorFunc adapts a plain function to Advisor.
type AdvisorFunc func(ctx context.Context, message, channel string) (string, error)

func (f AdvisorFunc) Advise(ctx context.Context, message, channel string) (string, error) {
	return f(ctx, message, channel)
}

// runAdvisors concatenates every advisor's output with blank-line
// separators, logging and skipping any that error.
func runAdvisors(ctx context.Context, advisors []Advisor, log *slog.Logger, message, channel string) string {
	var parts []string
	for _, a := range advisors {
		text, err := a.Advise(ctx, message, channel)
		if err != nil {
			if log != nil {
				log.Warn("advisor failed", "error", err)
			}
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
