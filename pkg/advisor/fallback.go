package advisor

import (
	"context"
	"strings"
)

// degradedMarker prefixes the research text of every fallback response so
// downstream consumers and log readers can tell degraded responses apart
// from fully structured ones.
const degradedMarker = "[fallback] "

// fallbackApology is the terminal safety net: returned when even the
// plain-text fallback call fails or comes back empty.
const fallbackApology = "Sorry, something went wrong while preparing your answer. Please try again in a moment."

// respondDegraded issues the secondary, plain-text generation call and wraps
// the reply in a valid no-plan envelope. It always returns a StructuredResult
// with a non-empty research field; failures of the fallback call itself are
// absorbed into a static apology rather than propagated.
func (c *Core) respondDegraded(ctx context.Context, message string) *StructuredResult {
	genCtx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()

	text, err := c.generate(genCtx, generationRequest{Prompt: composeFallbackPrompt(message)})
	if err != nil {
		c.logger.Error("fallback generation failed", "err", err)
		text = fallbackApology
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = fallbackApology
	}

	return &StructuredResult{
		Research: degradedMarker + text,
		IsPlan:   false,
		Plans:    []Plan{},
	}
}
