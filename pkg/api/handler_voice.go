package api

import (
	"net/http"
	"sort"

	echo "github.com/labstack/echo/v5"

	"github.com/crisiscore-hq/crisiscore/pkg/coordinator"
	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

// voiceReportHandler handles GET /api/voice/report.
func (s *Server) voiceReportHandler(c *echo.Context) error {
	report, err := s.reporter.SituationReport(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &VoiceReportResponse{ReportText: report})
}

// synthesizeHandler handles POST /api/voice/synthesize. With no text in the
// body it speaks a freshly generated situation report.
func (s *Server) synthesizeHandler(c *echo.Context) error {
	var req SynthesizeRequest
	_ = c.Bind(&req)

	if !s.synthesizer.Configured() {
		return echo.NewHTTPError(http.StatusBadRequest, "ELEVENLABS_API_KEY not configured")
	}

	text := req.Text
	if text == "" {
		report, err := s.reporter.SituationReport(c.Request().Context())
		if err != nil {
			return mapError(err)
		}
		text = report
	}

	audio, err := s.synthesizer.Synthesize(c.Request().Context(), text)
	if err != nil {
		return mapError(err)
	}

	res := c.Response()
	res.Header().Set("Content-Type", "audio/mpeg")
	res.Header().Set("Content-Disposition", "inline; filename=report.mp3")
	res.WriteHeader(http.StatusOK)
	_, err = res.Write(audio)
	return err
}

// transcribeHandler handles POST /api/voice/transcribe.
func (s *Server) transcribeHandler(c *echo.Context) error {
	var req coordinator.VoiceReportInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Transcript == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "transcript is required")
	}

	report, result, err := s.coordinator.ProcessVoiceTranscript(c.Request().Context(), req)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, &TranscribeResponse{
		ReportID:     report.ID,
		SignalResult: result,
		Status:       "processed",
	})
}

// voiceReportsHandler handles GET /api/voice/reports.
func (s *Server) voiceReportsHandler(c *echo.Context) error {
	snap := s.coordinator.Graph().Snapshot()

	reports := make([]*models.VoiceReport, 0, len(snap.VoiceReports))
	for _, r := range snap.VoiceReports {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].CreatedAt.Before(reports[j].CreatedAt) })

	return c.JSON(http.StatusOK, reports)
}
