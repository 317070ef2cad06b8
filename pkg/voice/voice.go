// Package voice produces spoken situation briefings: report text comes from
// the oracle (or a stats fallback), audio from the ElevenLabs TTS API.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/crisiscore-hq/crisiscore/pkg/analyzer"
	"github.com/crisiscore-hq/crisiscore/pkg/copilot"
	"github.com/crisiscore-hq/crisiscore/pkg/graph"
	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

const (
	// ttsEndpoint is the ElevenLabs endpoint for the selected voice
	ttsEndpoint = "https://api.elevenlabs.io/v1/text-to-speech/pNInz6obpgDQGcFmaJgB"

	ttsModel   = "eleven_turbo_v2_5"
	ttsTimeout = 30 * time.Second
)

const briefingSystem = "You are a disaster response briefing officer. Convert the situation data into a clear, spoken briefing of 3-5 sentences. Use natural spoken language, not bullet points. Be concise and prioritize the most critical information."

var (
	// ErrNotConfigured means no ElevenLabs API key is set
	ErrNotConfigured = errors.New("elevenlabs api key not configured")

	// ErrUpstreamTimeout means the TTS call exceeded its deadline
	ErrUpstreamTimeout = errors.New("elevenlabs api timeout")

	// ErrUpstream covers every other TTS failure
	ErrUpstream = errors.New("elevenlabs api error")
)

// Synthesizer converts text to speech via ElevenLabs
type Synthesizer struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewSynthesizer creates a TTS client. An empty key is allowed; Synthesize
// then fails with ErrNotConfigured so the API layer can answer 400.
func NewSynthesizer(apiKey string) *Synthesizer {
	return &Synthesizer{
		apiKey:   apiKey,
		endpoint: ttsEndpoint,
		client:   &http.Client{Timeout: ttsTimeout},
	}
}

// Configured reports whether an API key is present
func (s *Synthesizer) Configured() bool {
	return s.apiKey != ""
}

// Synthesize returns MP3 audio for the given text
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": ttsModel,
		"voice_settings": map[string]any{
			"stability":        0.7,
			"similarity_boost": 0.8,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, ErrUpstreamTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	return audio, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Reporter generates spoken situation briefings from the graph
type Reporter struct {
	oracle analyzer.Oracle
	graph  *graph.Manager
}

// NewReporter creates a briefing generator. A nil oracle yields the stats
// fallback text.
func NewReporter(oracle analyzer.Oracle, g *graph.Manager) *Reporter {
	return &Reporter{oracle: oracle, graph: g}
}

// SituationReport returns 3-5 sentences of spoken briefing text
func (r *Reporter) SituationReport(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	snap := r.graph.Snapshot()
	if r.oracle == nil {
		return fallbackReport(snap), nil
	}

	text, err := r.oracle.Generate(ctx, analyzer.Request{
		System: briefingSystem,
		Messages: []analyzer.Message{{
			Role: "user",
			Text: "Generate a spoken situation briefing from this data:\n\n" + copilot.SituationSummary(snap),
		}},
		MaxTokens:   300,
		Temperature: 0.5,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return fallbackReport(snap), nil
	}
	return text, nil
}

func fallbackReport(snap *models.SituationGraph) string {
	critical, available := 0, 0
	for _, inc := range snap.Incidents {
		if inc.Urgency == models.UrgencyCritical {
			critical++
		}
	}
	for _, res := range snap.Resources {
		if res.Status == models.ResourceAvailable {
			available++
		}
	}
	return fmt.Sprintf("Situation report: %d incidents tracked, %d critical. "+
		"%d resources available for deployment. "+
		"All teams maintain current assignments pending further updates.",
		len(snap.Incidents), critical, available)
}
