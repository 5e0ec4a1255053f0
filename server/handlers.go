package server

import (
	"crypto/md5"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rafall04/cctv-sub000/tier"
)

// getUpgrader returns a WebSocket upgrader configured to allow all origins
func getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins in development
		},
	}
}

// parseTileOptions reads tier, pause_delay_ms and auto_resume from the query
func (sm *StreamManager) parseTileOptions(c *gin.Context) (TileOptions, error) {
	var t tier.Tier
	if raw := c.Query("tier"); raw != "" {
		parsed, err := tier.Parse(raw)
		if err != nil {
			return TileOptions{}, err
		}
		t = parsed
	}

	var delay time.Duration
	if raw := c.Query("pause_delay_ms"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 || ms > 10000 {
			return TileOptions{}, fmt.Errorf("invalid pause_delay_ms %q", raw)
		}
		delay = time.Duration(ms) * time.Millisecond
	}

	var autoResume *bool
	if raw := c.Query("auto_resume"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return TileOptions{}, fmt.Errorf("invalid auto_resume %q", raw)
		}
		autoResume = &b
	}

	return sm.tileOptions(t, delay, autoResume), nil
}

// handleWebSocket upgrades HTTP connection to WebSocket and attaches a viewer tile
func (sm *StreamManager) handleWebSocket(c *gin.Context) {
	streamID := c.Param("streamId")

	sm.mu.RLock()
	stream, exists := sm.streams[streamID]
	sm.mu.RUnlock()

	if !exists {
		sm.log.Debug().Str("stream", streamID).Msg("websocket rejected: stream not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Stream not found"})
		return
	}

	stream.mu.RLock()
	isRunning := stream.isRunning
	stream.mu.RUnlock()

	if !isRunning {
		sm.log.Debug().Str("stream", streamID).Msg("websocket rejected: stream not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stream not running"})
		return
	}

	opts, err := sm.parseTileOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upgrader := getUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sm.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	if _, err := sm.AddClient(streamID, conn, opts); err != nil {
		sm.log.Warn().Err(err).Msg("add tile")
		conn.Close()
	}
}

// handleStartStream starts a new RTSP stream with specified ID
func (sm *StreamManager) handleStartStream(c *gin.Context) {
	var req struct {
		StreamID string `json:"stream_id" binding:"required"`
		RTSPURL  string `json:"rtsp_url" binding:"required"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Width == 0 {
		req.Width = sm.cfg.Width
	}
	if req.Height == 0 {
		req.Height = sm.cfg.Height
	}

	err := sm.StartStream(req.StreamID, req.RTSPURL, req.Width, req.Height)
	if errors.Is(err, ErrStreamExists) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Stream started successfully",
		"stream_id": req.StreamID,
		"rtsp_url":  req.RTSPURL,
		"width":     req.Width,
		"height":    req.Height,
	})
}

// handleStartStreamWithURL starts a new RTSP stream with an ID derived from the URL
func (sm *StreamManager) handleStartStreamWithURL(c *gin.Context) {
	var req struct {
		RTSPURL string `json:"rtsp_url" binding:"required"`
		Width   int    `json:"width"`
		Height  int    `json:"height"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	streamID := streamIDForURL(req.RTSPURL)

	if req.Width == 0 {
		req.Width = sm.cfg.Width
	}
	if req.Height == 0 {
		req.Height = sm.cfg.Height
	}

	message := "Stream started successfully"
	err := sm.StartStream(streamID, req.RTSPURL, req.Width, req.Height)
	switch {
	case errors.Is(err, ErrStreamExists):
		message = "Stream already running"
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   message,
		"stream_id": streamID,
		"rtsp_url":  req.RTSPURL,
		"width":     req.Width,
		"height":    req.Height,
	})
}

// streamIDForURL hashes the URL so the same camera always maps to one stream
func streamIDForURL(rtspURL string) string {
	hasher := md5.New()
	hasher.Write([]byte(rtspURL))
	return fmt.Sprintf("stream_%x", hasher.Sum(nil))[:16]
}

// handleStopStream stops a stream if no tiles are connected
func (sm *StreamManager) handleStopStream(c *gin.Context) {
	streamID := c.Param("streamId")

	sm.mu.RLock()
	_, exists := sm.streams[streamID]
	clientCount := len(sm.clients[streamID])
	sm.mu.RUnlock()

	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stream not found"})
		return
	}

	if clientCount > 0 {
		c.JSON(http.StatusConflict, gin.H{
			"error":        fmt.Sprintf("Cannot stop stream %s: %d client(s) still connected", streamID, clientCount),
			"client_count": clientCount,
		})
		return
	}

	if err := sm.StopStream(streamID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Stream stopped successfully",
		"stream_id": streamID,
	})
}

// handleForceStopStream forcefully stops a stream regardless of connected tiles
func (sm *StreamManager) handleForceStopStream(c *gin.Context) {
	streamID := c.Param("streamId")

	if err := sm.StopStream(streamID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Stream force-stopped successfully",
		"stream_id": streamID,
	})
}

// handleGetStreamStats returns statistics about a specific stream
func (sm *StreamManager) handleGetStreamStats(c *gin.Context) {
	stats, err := sm.GetStreamStats(c.Param("streamId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// handleListStreams returns a list of all active streams
func (sm *StreamManager) handleListStreams(c *gin.Context) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	streams := make([]map[string]interface{}, 0, len(sm.streams))
	for streamID, stream := range sm.streams {
		stream.mu.RLock()
		streamInfo := map[string]interface{}{
			"stream_id":    streamID,
			"rtsp_url":     stream.rtspURL,
			"is_running":   stream.isRunning,
			"client_count": len(sm.clients[streamID]),
			"frame_count":  stream.frameCount,
		}
		stream.mu.RUnlock()
		streams = append(streams, streamInfo)
	}

	c.JSON(http.StatusOK, gin.H{"streams": streams})
}

// handleListTiles returns every connected viewer tile with its playback status
func (sm *StreamManager) handleListTiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiles": sm.Tiles()})
}

// handleDashboard returns fleet wide counters
func (sm *StreamManager) handleDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, sm.Dashboard())
}

// handleViewerConfig returns the tier policy a viewer page should apply
func (sm *StreamManager) handleViewerConfig(c *gin.Context) {
	t := sm.hostTier
	if raw := c.Query("tier"); raw != "" {
		parsed, err := tier.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		t = parsed
	}

	reducedMotion, _ := strconv.ParseBool(c.Query("reduced_motion"))
	settings := tier.Policy(t, reducedMotion)
	if sm.playback.PauseDelay > 0 {
		settings.PauseDelayMs = sm.playback.PauseDelay.Milliseconds()
	}

	c.JSON(http.StatusOK, gin.H{
		"policy":               settings,
		"auto_resume":          sm.playback.AutoResume,
		"visibility_threshold": sm.visibility.Threshold(),
	})
}

// handleGetFrame returns a single frame from the stream buffer
func (sm *StreamManager) handleGetFrame(c *gin.Context) {
	streamID := c.Param("streamId")

	sm.mu.RLock()
	stream, exists := sm.streams[streamID]
	sm.mu.RUnlock()

	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stream not found"})
		return
	}

	stream.mu.RLock()
	isRunning := stream.isRunning
	stream.mu.RUnlock()

	if !isRunning {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrStreamNotRunning.Error()})
		return
	}

	timeout := time.After(FrameRequestTimeout)
	select {
	case frame, ok := <-stream.frameBuffer:
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stream buffer closed"})
			return
		}
		c.Header("X-Frame-Timestamp", strconv.FormatInt(time.Now().UnixNano(), 10))
		c.Data(http.StatusOK, "application/octet-stream", frame)
	case <-timeout:
		c.Status(http.StatusNoContent)
	}
}
