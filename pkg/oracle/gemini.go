// Package oracle provides the Gemini-backed implementation of the analyzer
// Oracle interface. When no API key is configured the analyzers receive a nil
// oracle and run on their deterministic fallbacks.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/crisiscore-hq/crisiscore/pkg/analyzer"
)

// Gemini calls the Gemini generation API
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini oracle. Returns an error when the key is empty
// so callers decide explicitly to run without one.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	slog.Info("Gemini oracle configured", "model", model)
	return &Gemini{client: client, model: model}, nil
}

// Close releases the underlying client
func (g *Gemini) Close() error {
	return g.client.Close()
}

// Generate runs one generation request and returns the concatenated text
func (g *Gemini) Generate(ctx context.Context, req analyzer.Request) (string, error) {
	model := g.client.GenerativeModel(g.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if req.Temperature > 0 {
		model.SetTemperature(req.Temperature)
	}

	var parts []genai.Part
	for _, m := range req.Messages {
		if m.Text != "" {
			parts = append(parts, genai.Text(m.Text))
		}
		if len(m.ImageJPEG) > 0 {
			parts = append(parts, genai.ImageData("jpeg", m.ImageJPEG))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("empty generation request")
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return flattenResponse(resp), nil
}

func flattenResponse(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}
