package agent

import (
	"context"
	"strings"

	"github.com/kadirpekel/roshni/pkg/budget"
	"github.com/kadirpekel/roshni/pkg/llm"
)

// AuthProfile is one configured credential/endpoint pair for a provider;
// the recovery policy rotates through these before giving up and falling
// back to a different model entirely.
type AuthProfile struct {
	Name   string
	Client llm.Client
}

// RecoveryConfig wires the knobs the recovery table reads:
// the ordered auth profiles to rotate through for the primary model, a
// fallback client to try once those are exhausted, and the catalog lookup
// used to resolve a NotFoundError's model name to an alternate.
type RecoveryConfig struct {
	Profiles []AuthProfile
	Fallback llm.Client

	// AlternateClient resolves a NotFoundError's (provider, model) to a
	// usable Client for a catalog-substituted model name, grounded on
	// pkg/llm/catalog.ResolveAlternate. Returning ok=false skips straight
	// to Fallback.
	AlternateClient func(provider, wantModel string) (client llm.Client, ok bool)
}

// recoveringGenerate implements the recovery/fallback table: it is the
// sole path through which the agent calls an LLM client,
// and it never returns a raw provider error — callers get either a
// Response or one of the friendly strings in errors.go.
func recoveringGenerate(ctx context.Context, cfg RecoveryConfig, b *budget.Budget, messages []llm.Message, tools []llm.ToolSchema) (llm.Response, string) {
	if b != nil && b.Exhausted() {
		return llm.Response{}, friendlyBudgetExhausted
	}

	resp, err := tryProfiles(ctx, cfg.Profiles, messages, tools)
	if err == nil {
		return resp, ""
	}

	switch e := err.(type) {
	case *llm.NotFoundError:
		if cfg.AlternateClient != nil {
			if alt, ok := cfg.AlternateClient(e.Provider, e.Model); ok {
				if r, aerr := alt.Generate(ctx, messages, tools); aerr == nil {
					return r, ""
				}
			}
		}
		if cfg.Fallback != nil {
			if r, ferr := cfg.Fallback.Generate(ctx, messages, tools); ferr == nil {
				return r, ""
			}
		}
		return llm.Response{}, friendlyBusy

	case *llm.BadRequestError:
		lower := strings.ToLower(e.Message)
		switch {
		case strings.Contains(lower, "temperature"):
			// A provider-specific temperature constraint rejected the
			// request; pkg/llm.Client has no temperature parameter to
			// adjust, so this is a plain one-shot retry with the same
			// profiles and messages.
			if r, rerr := tryProfiles(ctx, cfg.Profiles, messages, tools); rerr == nil {
				return r, ""
			}
		case strings.Contains(lower, "tool_call_id") || strings.Contains(lower, "must be followed by"):
			repaired := Sanitize(messages)
			if r, rerr := tryProfiles(ctx, cfg.Profiles, repaired, tools); rerr == nil {
				return r, ""
			}
		}
		if cfg.Fallback != nil {
			if r, ferr := cfg.Fallback.Generate(ctx, messages, tools); ferr == nil {
				return r, ""
			}
		}
		return llm.Response{}, friendlyRequestFormat

	case *llm.RateLimitError, *llm.APIError, *llm.APIConnectionError,
		*llm.ServiceUnavailableError, *llm.InternalServerError:
		if cfg.Fallback != nil {
			if r, ferr := cfg.Fallback.Generate(ctx, messages, tools); ferr == nil {
				return r, ""
			}
		}
		return llm.Response{}, friendlyBusy

	default:
		return llm.Response{}, friendlyUnexpected
	}
}

// tryProfiles rotates through auth profiles in order, returning the first
// success. The last profile's error is returned if all fail.
func tryProfiles(ctx context.Context, profiles []AuthProfile, messages []llm.Message, tools []llm.ToolSchema) (llm.Response, error) {
	var lastErr error
	for _, p := range profiles {
		if p.Client == nil {
			continue
		}
		resp, err := p.Client.Generate(ctx, messages, tools)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !llm.IsRetryable(err) {
			// Non-retryable errors (BadRequest, NotFound) shouldn't burn
			// through every remaining profile — they'll fail the same way.
			return llm.Response{}, err
		}
	}
	if lastErr == nil {
		lastErr = &llm.APIConnectionError{Message: "no auth profiles configured"}
	}
	return llm.Response{}, lastErr
}
