package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/crisiscore-hq/crisiscore/pkg/graph"
	"github.com/crisiscore-hq/crisiscore/pkg/voice"
)

// mapError maps coordinator and voice errors to HTTP error responses.
func mapError(err error) *echo.HTTPError {
	if errors.Is(err, graph.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, voice.ErrNotConfigured) {
		return echo.NewHTTPError(http.StatusBadRequest, "ELEVENLABS_API_KEY not configured")
	}
	if errors.Is(err, voice.ErrUpstreamTimeout) {
		return echo.NewHTTPError(http.StatusGatewayTimeout, "ElevenLabs API timeout")
	}
	if errors.Is(err, voice.ErrUpstream) {
		return echo.NewHTTPError(http.StatusBadGateway, "ElevenLabs API error: "+err.Error())
	}

	// Unexpected error
	slog.Error("Unexpected handler error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
