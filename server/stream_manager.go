package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rafall04/cctv-sub000/config"
	"github.com/rafall04/cctv-sub000/playback"
	"github.com/rafall04/cctv-sub000/schedule"
	"github.com/rafall04/cctv-sub000/tier"
	"github.com/rafall04/cctv-sub000/visibility"
)

var (
	ErrStreamNotFound   = errors.New("stream not found")
	ErrStreamExists     = errors.New("stream already exists")
	ErrStreamNotRunning = errors.New("stream not running")
)

// NewStreamManager creates a new instance of StreamManager
func NewStreamManager(
	cfg *config.Config,
	hostTier tier.Tier,
	source FrameSource,
	scheduler schedule.Scheduler,
	logger zerolog.Logger,
) *StreamManager {
	feed := &visibility.Feed{}
	return &StreamManager{
		streams:   make(map[string]*Stream),
		clients:   make(map[string]map[string]*Client),
		cfg:       cfg.Stream,
		playback:  cfg.Playback,
		hostTier:  hostTier,
		source:    source,
		scheduler: scheduler,
		feed:      feed,
		visibility: visibility.New(feed.Factory,
			visibility.WithThreshold(cfg.Playback.VisibilityThreshold)),
		log: logger.With().Str("component", "streams").Logger(),
	}
}

// StartStream starts a new RTSP stream ingestion
func (sm *StreamManager) StartStream(streamID, rtspURL string, width, height int) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.streams[streamID]; exists {
		return fmt.Errorf("%w: %s", ErrStreamExists, streamID)
	}

	if width <= 0 {
		width = sm.cfg.Width
	}
	if height <= 0 {
		height = sm.cfg.Height
	}

	ctx, cancel := context.WithCancel(context.Background())

	stream := &Stream{
		rtspURL:        rtspURL,
		streamID:       streamID,
		width:          width,
		height:         height,
		frameBuffer:    make(chan []byte, sm.cfg.FrameBufferSize),
		clients:        make(map[string]*Client),
		cancelFunc:     cancel,
		startedAt:      time.Now(),
		healthStopChan: make(chan struct{}),
	}

	sm.streams[streamID] = stream
	sm.clients[streamID] = make(map[string]*Client)

	go sm.runIngest(ctx, stream)
	go sm.distributeFrames(stream)
	go sm.monitorStreamHealth(stream)

	sm.log.Info().Str("stream", streamID).Str("url", rtspURL).Msg("started stream")
	return nil
}

// runIngest keeps the frame source running until ctx is cancelled
func (sm *StreamManager) runIngest(ctx context.Context, stream *Stream) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		stream.mu.Lock()
		stream.isRunning = true
		stream.mu.Unlock()

		err := sm.source.Run(ctx, stream, func(frame []byte) {
			sm.pushFrame(stream, frame)
		})

		stream.mu.Lock()
		stream.isRunning = false
		stream.lastError = err
		stream.mu.Unlock()

		if err != nil {
			sm.log.Warn().Err(err).Str("stream", stream.streamID).Msg("ingest failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(sm.cfg.RestartDelay):
			}
		}
	}
}

// pushFrame buffers a frame, dropping the oldest one when the buffer is full
func (sm *StreamManager) pushFrame(stream *Stream, frame []byte) {
	stream.mu.Lock()
	defer stream.mu.Unlock()

	if stream.stopped {
		return
	}

	select {
	case stream.frameBuffer <- frame:
	default:
		select {
		case <-stream.frameBuffer:
		default:
		}
		stream.frameBuffer <- frame
		sm.log.Debug().Str("stream", stream.streamID).Msg("frame buffer full, dropped oldest frame")
	}
	stream.lastFrameTime = time.Now()
	stream.frameCount++
}

// distributeFrames sends frames from buffer to every tile that is not paused
func (sm *StreamManager) distributeFrames(stream *Stream) {
	defer sm.log.Debug().Str("stream", stream.streamID).Msg("frame distribution stopped")

	for frame := range stream.frameBuffer {
		stream.clientsMu.RLock()
		clients := make([]*Client, 0, len(stream.clients))
		for _, client := range stream.clients {
			clients = append(clients, client)
		}
		stream.clientsMu.RUnlock()

		for _, client := range clients {
			client.deliver(frame)
		}
	}
}

// StopStream stops a running stream and disconnects its tiles
func (sm *StreamManager) StopStream(streamID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.stopStreamLocked(streamID)
}

// StopAll stops every stream
func (sm *StreamManager) StopAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for streamID := range sm.streams {
		if err := sm.stopStreamLocked(streamID); err != nil {
			sm.log.Warn().Err(err).Str("stream", streamID).Msg("stop stream")
		}
	}
}

func (sm *StreamManager) stopStreamLocked(streamID string) error {
	stream, exists := sm.streams[streamID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	}

	stream.mu.Lock()
	stream.cancelFunc()
	stream.stopped = true
	close(stream.healthStopChan)
	close(stream.frameBuffer)
	stream.mu.Unlock()

	// Tiles tear themselves down when their read pump sees the closed socket.
	for _, client := range sm.clients[streamID] {
		client.close()
		client.conn.Close()
	}

	delete(sm.streams, streamID)
	delete(sm.clients, streamID)

	sm.log.Info().Str("stream", streamID).Msg("stopped stream")
	return nil
}

// AddClient attaches a new viewer tile to a stream
func (sm *StreamManager) AddClient(streamID string, conn *websocket.Conn, opts TileOptions) (*Client, error) {
	sm.mu.Lock()

	stream, exists := sm.streams[streamID]
	if !exists {
		sm.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	}

	client := newClient(sm, stream, conn, opts)

	stream.clientsMu.Lock()
	stream.clients[client.id] = client
	stream.clientsMu.Unlock()

	sm.clients[streamID][client.id] = client
	sm.mu.Unlock()

	sm.visibility.Observe(client.id, client.setVisible)
	client.controller.Initialize(&subscription{manager: sm, client: client})

	go client.writePump()
	go client.readPump()

	client.log.Info().Str("tier", opts.Tier.String()).Msg("tile connected")
	return client, nil
}

// RemoveClient detaches a tile from its stream
func (sm *StreamManager) RemoveClient(client *Client) {
	if !client.close() {
		return
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	stream, exists := sm.streams[client.streamID]
	if !exists {
		return
	}

	stream.clientsMu.Lock()
	delete(stream.clients, client.id)
	remaining := len(stream.clients)
	stream.clientsMu.Unlock()

	delete(sm.clients[client.streamID], client.id)

	client.log.Info().Int("remaining", remaining).Msg("tile removed")

	if remaining == 0 && sm.cfg.AutoStopIdle {
		sm.log.Info().Str("stream", client.streamID).Msg("no tiles left, stopping stream")
		if err := sm.stopStreamLocked(client.streamID); err != nil {
			sm.log.Warn().Err(err).Str("stream", client.streamID).Msg("idle stop")
		}
	}
}

// GetStreamStats returns statistics for a stream
func (sm *StreamManager) GetStreamStats(streamID string) (map[string]interface{}, error) {
	sm.mu.RLock()
	stream, exists := sm.streams[streamID]
	clients := sm.clientsOf(streamID)
	sm.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	}

	// Controllers are read outside sm.mu: tile teardown locks them in the
	// opposite order.
	byStatus := map[string]int{}
	for _, client := range clients {
		byStatus[client.controller.Status().String()]++
	}

	stream.mu.RLock()
	stats := map[string]interface{}{
		"stream_id":       streamID,
		"rtsp_url":        stream.rtspURL,
		"is_running":      stream.isRunning,
		"frame_count":     stream.frameCount,
		"last_frame_time": stream.lastFrameTime,
		"restarts":        stream.restarts,
		"client_count":    len(clients),
		"tiles":           byStatus,
		"buffer_size":     len(stream.frameBuffer),
	}
	if stream.lastError != nil {
		stats["last_error"] = stream.lastError.Error()
	}
	stream.mu.RUnlock()

	return stats, nil
}

// Tiles returns every connected tile ordered by connection time
func (sm *StreamManager) Tiles() []TileInfo {
	sm.mu.RLock()
	var clients []*Client
	for streamID := range sm.clients {
		clients = append(clients, sm.clientsOf(streamID)...)
	}
	sm.mu.RUnlock()

	tiles := make([]TileInfo, 0, len(clients))
	for _, client := range clients {
		tiles = append(tiles, client.info())
	}

	sort.Slice(tiles, func(i, j int) bool {
		return tiles[i].ConnectedAt.Before(tiles[j].ConnectedAt)
	})
	return tiles
}

// clientsOf must be called with sm.mu held.
func (sm *StreamManager) clientsOf(streamID string) []*Client {
	clients := make([]*Client, 0, len(sm.clients[streamID]))
	for _, client := range sm.clients[streamID] {
		clients = append(clients, client)
	}
	return clients
}

// Dashboard summarises streams and tiles
func (sm *StreamManager) Dashboard() map[string]interface{} {
	tiles := sm.Tiles()
	byStatus := map[string]int{}
	for _, status := range []playback.Status{
		playback.StatusIdle, playback.StatusLoading, playback.StatusPlaying, playback.StatusPaused,
	} {
		byStatus[status.String()] = 0
	}
	for _, t := range tiles {
		byStatus[t.Status.String()]++
	}

	sm.mu.RLock()
	streams := len(sm.streams)
	running := 0
	for _, stream := range sm.streams {
		stream.mu.RLock()
		if stream.isRunning {
			running++
		}
		stream.mu.RUnlock()
	}
	sm.mu.RUnlock()

	return map[string]interface{}{
		"streams":         streams,
		"running_streams": running,
		"tiles":           len(tiles),
		"tiles_by_status": byStatus,
		"observed_tiles":  sm.visibility.ObservedCount(),
		"host_tier":       sm.hostTier,
	}
}

// tileOptions fills unset tile options from configuration
func (sm *StreamManager) tileOptions(t tier.Tier, pauseDelay time.Duration, autoResume *bool) TileOptions {
	opts := TileOptions{
		Tier:       t,
		PauseDelay: pauseDelay,
		AutoResume: sm.playback.AutoResume,
	}
	if opts.Tier == "" {
		opts.Tier = sm.hostTier
	}
	if opts.PauseDelay <= 0 {
		opts.PauseDelay = sm.playback.PauseDelay
	}
	if autoResume != nil {
		opts.AutoResume = *autoResume
	}
	return opts
}

// monitorStreamHealth checks if frames are being received and restarts the ingest if stalled
func (sm *StreamManager) monitorStreamHealth(stream *Stream) {
	ticker := time.NewTicker(sm.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stream.healthStopChan:
			return
		case <-ticker.C:
			stream.mu.Lock()
			lastFrame := stream.lastFrameTime
			if lastFrame.IsZero() {
				lastFrame = stream.startedAt
			}
			if stream.stopped || time.Since(lastFrame) <= sm.cfg.MaxStall {
				stream.mu.Unlock()
				continue
			}

			sm.log.Warn().Str("stream", stream.streamID).Msg("stream stalled, restarting ingest")
			stream.cancelFunc()
			ctx, cancel := context.WithCancel(context.Background())
			stream.cancelFunc = cancel
			stream.isRunning = false
			stream.restarts++
			stream.lastFrameTime = time.Now()
			stream.mu.Unlock()

			go sm.runIngest(ctx, stream)
		}
	}
}
