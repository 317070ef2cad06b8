// Package analyzer contains the modality- and task-specific analyzers that
// turn raw signals and structured context into typed outputs. Each analyzer
// may call an LLM oracle; on any oracle or parse failure it returns a
// deterministic fallback so the pipeline keeps working without credentials.
package analyzer

import (
	"context"
	"log/slog"
	"time"
)

// Message is one turn of oracle input. ImageJPEG carries inline image bytes
// for multimodal analyzers.
type Message struct {
	Role      string
	Text      string
	ImageJPEG []byte
}

// Request is a single oracle generation call
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
}

// Oracle abstracts the LLM provider. Implementations must be safe for
// concurrent use.
type Oracle interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Output is the uniform analyzer result shape
type Output struct {
	AnalyzerName string         `json:"analyzer_name"`
	OutputType   string         `json:"output_type"`
	Data         map[string]any `json:"data"`
	Confidence   float64        `json:"confidence"`
	Sources      []string       `json:"sources"`
	Reasoning    string         `json:"reasoning"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Input is one raw signal handed to a modality analyzer
type Input struct {
	Content  string
	Metadata map[string]any
}

const (
	defaultMaxTokens   = 4096
	defaultTemperature = 0.7
)

// generate runs one oracle call and tolerantly extracts a JSON object from
// the response. A nil oracle is reported as unavailable so callers fall back.
func generate(ctx context.Context, oracle Oracle, name string, req Request) (map[string]any, error) {
	if oracle == nil {
		return nil, ErrNoOracle
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}
	text, err := oracle.Generate(ctx, req)
	if err != nil {
		slog.Warn("oracle call failed, using fallback", "analyzer", name, "error", err)
		return nil, err
	}
	data, err := ExtractJSON(text)
	if err != nil {
		slog.Warn("oracle response unparseable, using fallback", "analyzer", name, "error", err)
		return nil, err
	}
	return data, nil
}

// Map access helpers. Analyzer data is schema-shaped but arrives as generic
// maps, so reads tolerate missing or differently-typed fields.

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func getFloat(m map[string]any, key string, def float64) float64 {
	if m == nil {
		return def
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func getInt(m map[string]any, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	sub, _ := m[key].(map[string]any)
	return sub
}

func getSlice(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	s, _ := m[key].([]any)
	return s
}

func getStrings(m map[string]any, key string) []string {
	var out []string
	for _, v := range getSlice(m, key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
