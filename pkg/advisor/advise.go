package advisor

import (
	"context"
	"errors"
	"strings"
)

// AdviceRequest is the caller's input: a free-text message and an optional
// portfolio snapshot.
type AdviceRequest struct {
	Message   string
	Portfolio []PortfolioHolding
}

// Advise runs the advisory pipeline: compose the prompt, call the generation
// service, coerce the reply into a StructuredResult, and fall back to a
// degraded plain-text response when coercion fails. At most two generation
// calls happen per request, and the fallback call is strictly sequential.
//
// Content failures from the generation service never surface as errors; the
// only error classes returned are invalid caller input and generation-service
// unavailability.
func (c *Core) Advise(ctx context.Context, req AdviceRequest) (*StructuredResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, NewError(ErrCodeInvalidRequest, "prompt is required")
	}
	if strings.TrimSpace(c.gemini.APIKey) == "" {
		return nil, NewError(ErrCodeServiceUnavailable, "generation service API key not set")
	}

	prompt := composeAdvicePrompt(message, req.Portfolio)

	genCtx, cancel := context.WithTimeout(ctx, c.genTimeout)
	raw, err := c.generate(genCtx, generationRequest{Prompt: prompt, JSONOutput: true})
	cancel()
	if err != nil {
		if !errors.Is(err, errEmptyGeneration) {
			return nil, WrapError(ErrCodeServiceUnavailable, "generation request failed", err)
		}
		// An empty reply is off-contract content, not a transport failure;
		// feed the empty text through extraction so it routes to fallback.
		raw = ""
	}

	result, failure := extractStructuredResult(raw)
	if failure == nil {
		c.recordAdvice(message, adviceStatusOK, len(result.Plans), "")
		return result, nil
	}

	c.logger.Warn("structured extraction failed; using fallback responder",
		"kind", failure.Kind,
		"err", failure.Err,
	)
	degraded := c.respondDegraded(ctx, message)
	c.recordAdvice(message, adviceStatusDegraded, 0, string(failure.Kind))
	return degraded, nil
}
