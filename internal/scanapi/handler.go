package scanapi

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vinscan/vinscan/internal/dto"
	"github.com/vinscan/vinscan/internal/framestore"
	"github.com/vinscan/vinscan/internal/metrics"
	"github.com/vinscan/vinscan/internal/recognition"
	"github.com/vinscan/vinscan/internal/scan"
	"github.com/vinscan/vinscan/internal/scanstore"
	"github.com/vinscan/vinscan/internal/shared"
)

type Handler struct {
	manager *scan.Manager
	scans   *scanstore.Store
	frames  *framestore.Store
	summary *metrics.MemorySink
	hub     *Hub
	logger  *slog.Logger
}

func NewHandler(manager *scan.Manager, scans *scanstore.Store, frames *framestore.Store, summary *metrics.MemorySink, hub *Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		manager: manager,
		scans:   scans,
		frames:  frames,
		summary: summary,
		hub:     hub,
		logger:  logger.With("component", "scanapi"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/devices/:id/scan", h.Scan)
	g.GET("/devices/:id/status", h.DeviceStatus)
	g.GET("/devices/:id/consensus", h.Consensus)
	g.GET("/devices/:id/frames", h.Frames)
	g.DELETE("/devices/:id/session", h.ResetSession)
	g.GET("/devices/:id/live", h.Live)
	g.GET("/scans", h.ListScans)
	g.GET("/metrics/summary", h.MetricsSummary)
}

// Scan runs one recognition session for a device against a submitted image.
func (h *Handler) Scan(c echo.Context) error {
	deviceID := c.Param("id")
	if deviceID == "" {
		return shared.BadRequest("missing_device", "device id is required")
	}

	var req dto.ScanRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	img, err := imageFromRequest(req)
	if err != nil {
		return shared.BadRequest("invalid_image", err.Error())
	}

	out := h.manager.Engine(deviceID).Scan(c.Request().Context(), img)
	switch out.Status {
	case scan.StatusBusy:
		return shared.Conflict("scan_in_progress", shared.ErrBusy.Error())
	case scan.StatusThrottled:
		c.Response().Header().Set("Retry-After", strconv.FormatInt(int64(out.RetryAfter.Seconds()+1), 10))
		return shared.TooManyRequests("scan_throttled", "scan interval not elapsed")
	}

	if out.Succeeded() && h.scans != nil {
		rec := scanstore.FromOutcome(deviceID, out)
		if err := h.scans.Save(c.Request().Context(), &rec); err != nil {
			h.logger.Error("failed to persist scan", "error", err, "device_id", deviceID)
		}
	}

	return c.JSON(http.StatusOK, dto.FromOutcome(out))
}

// DeviceStatus reports the device's frame window, consensus and interval.
func (h *Handler) DeviceStatus(c echo.Context) error {
	deviceID := c.Param("id")
	eng, ok := h.manager.Peek(deviceID)
	if !ok {
		return shared.NotFound("device_not_found", "no scans recorded for device")
	}

	resp := dto.DeviceStatusResponse{
		DeviceID: deviceID,
		State:    string(eng.State()),
		Frames:   []dto.FrameResponse{},
	}
	for _, f := range eng.Frames() {
		resp.Frames = append(resp.Frames, dto.FromFrame(f))
	}
	if cons, ok := eng.Consensus(); ok {
		cr := dto.FromConsensus(cons)
		resp.Consensus = &cr
	}
	resp.Conflicts = dto.FromConflicts(eng.Inconsistencies())

	interval := eng.Interval()
	resp.FailureCount = interval.FailureCount
	resp.IntervalMs = interval.Interval.Milliseconds()

	return c.JSON(http.StatusOK, resp)
}

// Consensus returns the stabilized multi-frame VIN for a device.
func (h *Handler) Consensus(c echo.Context) error {
	eng, ok := h.manager.Peek(c.Param("id"))
	if !ok {
		return shared.NotFound("device_not_found", "no scans recorded for device")
	}
	cons, ok := eng.Consensus()
	if !ok {
		return shared.NotFound("no_consensus", "not enough agreeing frames")
	}
	return c.JSON(http.StatusOK, dto.FromConsensus(cons))
}

// Frames lists a device's archived frames within an optional time window.
func (h *Handler) Frames(c echo.Context) error {
	if h.frames == nil {
		return c.JSON(http.StatusOK, []dto.FrameResponse{})
	}
	deviceID := c.Param("id")
	from, to := timeWindow(c)
	if from.IsZero() {
		from = time.Now().Add(-time.Hour)
	}
	if to.IsZero() {
		to = time.Now()
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	frames, err := h.frames.Range(c.Request().Context(), deviceID, from, to, limit)
	if err != nil {
		h.logger.Error("frame archive read failed", "error", err, "device_id", deviceID)
		return shared.InternalError("archive_unavailable", "could not read frame archive")
	}

	resp := make([]dto.FrameResponse, 0, len(frames))
	for _, f := range frames {
		resp = append(resp, dto.FromFrame(f))
	}
	return c.JSON(http.StatusOK, resp)
}

// ResetSession clears a device's frame window and archive, typically when
// the camera moves to a different vehicle.
func (h *Handler) ResetSession(c echo.Context) error {
	deviceID := c.Param("id")
	if eng, ok := h.manager.Peek(deviceID); ok {
		eng.Reset()
	}
	if h.frames != nil {
		if err := h.frames.Clear(c.Request().Context(), deviceID); err != nil {
			h.logger.Warn("frame archive clear failed", "error", err, "device_id", deviceID)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// ListScans queries persisted scan results.
func (h *Handler) ListScans(c echo.Context) error {
	from, to := timeWindow(c)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	records, err := h.scans.List(c.Request().Context(), scanstore.Query{
		DeviceID: c.QueryParam("device_id"),
		VIN:      c.QueryParam("vin"),
		From:     from,
		To:       to,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.logger.Error("scan listing failed", "error", err)
		return shared.InternalError("store_unavailable", "could not query scans")
	}
	if records == nil {
		records = []scanstore.ScanRecord{}
	}
	return c.JSON(http.StatusOK, dto.ScanListResponse{Scans: records, Count: len(records)})
}

// MetricsSummary aggregates the in-memory metric log.
func (h *Handler) MetricsSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.summary.Summary())
}

// Live upgrades to a websocket feed of accepted frames and consensus
// updates for one device.
func (h *Handler) Live(c echo.Context) error {
	return h.hub.HandleConnection(c)
}

func imageFromRequest(req dto.ScanRequest) (recognition.Image, error) {
	img := recognition.Image{MIME: req.MIME, URL: req.ImageURL}
	if req.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return recognition.Image{}, err
		}
		img.Data = data
	}
	if img.Empty() {
		return recognition.Image{}, errEmptyImage
	}
	return img, nil
}

// timeWindow parses optional RFC3339 from/to query params. Absent or
// malformed params come back as zero times.
func timeWindow(c echo.Context) (from, to time.Time) {
	if raw := c.QueryParam("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			from = t
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			to = t
		}
	}
	return from, to
}

var errEmptyImage = errors.New("an image payload or url is required")
