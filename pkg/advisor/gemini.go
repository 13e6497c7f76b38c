package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultGeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel       = "gemini-2.5-flash"
	defaultGenerationTimeout = 60 * time.Second
)

// errEmptyGeneration marks a reply where the service answered but produced no
// text. This is a content failure (handled by the fallback responder), not a
// transport failure.
var errEmptyGeneration = errors.New("generation response text is empty")

type generationRequest struct {
	Prompt string
	// JSONOutput requests application/json output from the model. Set on the
	// structured pass only; the fallback pass wants plain prose.
	JSONOutput bool
}

// generateText is swapped out in tests to stub the generation service.
var generateText = requestGeminiGeneration

func (c *Core) generate(ctx context.Context, req generationRequest) (string, error) {
	return generateText(ctx, c.gemini, req, c.logger)
}

func requestGeminiGeneration(ctx context.Context, cfg GeminiConfig, req generationRequest, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	baseURL, apiVersion, err := splitGeminiBaseURL(cfg.BaseURL)
	if err != nil {
		return "", err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    baseURL,
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		return "", fmt.Errorf("create gemini client failed: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.2)),
	}
	if req.JSONOutput {
		config.ResponseMIMEType = "application/json"
	}

	logger.Debug("generation request",
		"model", cfg.Model,
		"json_output", req.JSONOutput,
		"prompt_bytes", len(req.Prompt),
	)

	response, err := client.Models.GenerateContent(ctx, cfg.Model, genai.Text(req.Prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}

	text := strings.TrimSpace(response.Text())
	if text == "" {
		// The primary text accessor only reads the first candidate; walk the
		// full candidate list before concluding no text was produced.
		text = strings.TrimSpace(collectCandidateText(response))
	}
	if text == "" {
		return "", errEmptyGeneration
	}
	return text, nil
}

func collectCandidateText(response *genai.GenerateContentResponse) string {
	if response == nil {
		return ""
	}
	var parts []string
	for _, candidate := range response.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// splitGeminiBaseURL separates a configured endpoint such as
// "https://generativelanguage.googleapis.com/v1beta" into the base URL and
// API version the client config expects.
func splitGeminiBaseURL(endpoint string) (string, string, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = defaultGeminiBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("invalid gemini endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", fmt.Errorf("invalid gemini endpoint scheme: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("invalid gemini endpoint host")
	}

	apiVersion := "v1beta"
	prefix := ""
	path := strings.Trim(parsed.Path, "/")
	if path != "" {
		segments := strings.Split(path, "/")
		foundVersion := false
		for idx, segment := range segments {
			if strings.HasPrefix(strings.ToLower(segment), "v1") {
				apiVersion = segment
				prefix = strings.Join(segments[:idx], "/")
				foundVersion = true
				break
			}
		}
		if !foundVersion {
			prefix = path
		}
	}

	baseURL := fmt.Sprintf("%s://%s/", parsed.Scheme, parsed.Host)
	if prefix != "" {
		baseURL += prefix + "/"
	}
	return baseURL, apiVersion, nil
}
