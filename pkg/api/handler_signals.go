package api

import (
	"encoding/base64"
	"io"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

// maxSignalUploadBytes caps image and audio uploads at 10 MiB.
const maxSignalUploadBytes = 10 << 20

// imageSignalHandler handles POST /api/signals/image. The body is multipart
// with a "file" part plus optional location_lat, location_lng and sector
// fields.
func (s *Server) imageSignalHandler(c *echo.Context) error {
	content, filename, err := readUpload(c)
	if err != nil {
		return err
	}

	metadata := map[string]any{"filename": filename}
	if v := c.Request().FormValue("location_lat"); v != "" {
		lat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid location_lat")
		}
		lng, err := strconv.ParseFloat(c.Request().FormValue("location_lng"), 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid location_lng")
		}
		metadata["location"] = map[string]any{"lat": lat, "lng": lng}
	}
	if v := c.Request().FormValue("sector"); v != "" {
		metadata["sector"] = v
	}

	result, err := s.coordinator.ProcessSignal(c.Request().Context(), models.SignalInput{
		SignalType: models.SignalTypeImage,
		Content:    base64.StdEncoding.EncodeToString(content),
		Metadata:   metadata,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// audioSignalHandler handles POST /api/signals/audio. The body is multipart
// with a "file" part plus an optional transcript field.
func (s *Server) audioSignalHandler(c *echo.Context) error {
	content, filename, err := readUpload(c)
	if err != nil {
		return err
	}

	metadata := map[string]any{"filename": filename}
	if v := c.Request().FormValue("transcript"); v != "" {
		metadata["transcript"] = v
	}

	result, err := s.coordinator.ProcessSignal(c.Request().Context(), models.SignalInput{
		SignalType: models.SignalTypeAudio,
		Content:    base64.StdEncoding.EncodeToString(content),
		Metadata:   metadata,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// textSignalHandler handles POST /api/signals/text with a JSON SignalInput.
func (s *Server) textSignalHandler(c *echo.Context) error {
	var in models.SignalInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	in.SignalType = models.SignalTypeText

	result, err := s.coordinator.ProcessSignal(c.Request().Context(), in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// readUpload extracts the "file" multipart part, enforcing the size cap.
func readUpload(c *echo.Context) ([]byte, string, error) {
	file, header, err := c.Request().FormFile("file")
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxSignalUploadBytes+1))
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "failed to read upload")
	}
	if len(content) > maxSignalUploadBytes {
		return nil, "", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "upload exceeds 10MB limit")
	}
	return content, header.Filename, nil
}
